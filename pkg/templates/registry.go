package templates

import (
	"bytes"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"

	"dpterminal/pkg/errors"
)

// Template is a parsed text template
type Template struct {
	ID      string
	Path    string
	Content string

	parsed *template.Template
}

// Render executes the template with data
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", t.ID)
	}
	return buf.String(), nil
}

// Registry holds templates loaded from a filesystem, keyed by path without extension
type Registry struct {
	fs        fs.FS
	funcs     template.FuncMap
	templates map[string]*Template
	mu        sync.RWMutex
}

// NewRegistryFromFS parses every .tmpl file in filesystem. funcs is available to all templates.
func NewRegistryFromFS(filesystem fs.FS, funcs template.FuncMap) (*Registry, error) {
	r := &Registry{
		fs:        filesystem,
		funcs:     funcs,
		templates: map[string]*Template{},
	}

	if err := r.loadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistryFromFS is NewRegistryFromFS for embedded templates that must parse
func MustRegistryFromFS(filesystem fs.FS, funcs template.FuncMap) *Registry {
	r, err := NewRegistryFromFS(filesystem, funcs)
	if err != nil {
		panic(err)
	}
	return r
}

// GetTemplate retrieves a template by its ID
func (r *Registry) GetTemplate(id string) (*Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[id]
	r.mu.RUnlock()

	if ok {
		return tmpl, nil
	}

	// lazy load in case the file appeared after initialization
	p := id + ".tmpl"
	if _, err := fs.Stat(r.fs, p); err == nil {
		if err := r.loadTemplate(p); err != nil {
			return nil, err
		}
		r.mu.RLock()
		tmpl = r.templates[id]
		r.mu.RUnlock()
		if tmpl != nil {
			return tmpl, nil
		}
	}

	return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
}

// Render executes a template by ID
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, err := r.GetTemplate(id)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// List returns all known template IDs
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) loadAll() error {
	return fs.WalkDir(r.fs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".tmpl" {
			return nil
		}
		return r.loadTemplate(p)
	})
}

func (r *Registry) loadTemplate(p string) error {
	id := strings.TrimSuffix(p, path.Ext(p))
	content, err := fs.ReadFile(r.fs, p)
	if err != nil {
		return errors.Wrapf(err, "read template %s", id)
	}

	parsed, err := template.New(id).Funcs(r.funcs).Parse(string(content))
	if err != nil {
		return errors.Wrapf(err, "parse template %s", id)
	}

	r.mu.Lock()
	r.templates[id] = &Template{
		ID:      id,
		Path:    p,
		Content: string(content),
		parsed:  parsed,
	}
	r.mu.Unlock()
	return nil
}
