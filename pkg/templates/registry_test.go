package templates

import (
	"strings"
	"testing"
	"testing/fstest"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/pkg/errors"
)

func TestRegistryLoadAndRender(t *testing.T) {
	fsys := fstest.MapFS{
		"price/listing.tmpl": {Data: []byte("Hello {{upper .Name}}")},
		"README.md":          {Data: []byte("ignored")},
	}

	reg, err := NewRegistryFromFS(fsys, template.FuncMap{"upper": strings.ToUpper})
	require.NoError(t, err)

	assert.Equal(t, []string{"price/listing"}, reg.List())

	out, err := reg.Render("price/listing", map[string]string{"Name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ALICE", out)
}

func TestRegistryLazyLoad(t *testing.T) {
	fsys := fstest.MapFS{}
	reg, err := NewRegistryFromFS(fsys, nil)
	require.NoError(t, err)

	_, err = reg.GetTemplate("late")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	fsys["late.tmpl"] = &fstest.MapFile{Data: []byte("{{.}}!")}
	out, err := reg.Render("late", "gm")
	require.NoError(t, err)
	assert.Equal(t, "gm!", out)
}

func TestRegistryParseError(t *testing.T) {
	_, err := NewRegistryFromFS(fstest.MapFS{"bad.tmpl": {Data: []byte("{{.Name")}}, nil)
	require.Error(t, err)

	assert.Panics(t, func() {
		MustRegistryFromFS(fstest.MapFS{"bad.tmpl": {Data: []byte("{{unknownFunc}}")}}, nil)
	})
}

func TestRenderError(t *testing.T) {
	reg, err := NewRegistryFromFS(fstest.MapFS{"t.tmpl": {Data: []byte("{{.Missing.Field}}")}}, nil)
	require.NoError(t, err)

	_, err = reg.Render("t", map[string]int{})
	assert.Error(t, err)
}
