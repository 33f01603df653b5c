package personality

import (
	"embed"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"dpterminal/pkg/errors"
)

// DefaultKey is the profile used when a session has none or an unknown one
const DefaultKey = "default"

// DefaultImageStyle applies to profiles without their own style
const DefaultImageStyle = "Trending crypto-art style, vibrant colors"

const walletPlaceholder = "{wallet}"

//go:embed data/personalities.toml
var embedded embed.FS

// Profile is one selectable persona
type Profile struct {
	Key            string
	SystemPrompt   string `toml:"system_prompt"`
	WalletResponse string `toml:"wallet_response"`
	ImageStyle     string `toml:"image_style"`
}

// Style returns the image style, falling back to DefaultImageStyle
func (p Profile) Style() string {
	if p.ImageStyle == "" {
		return DefaultImageStyle
	}
	return p.ImageStyle
}

// Registry is an immutable set of profiles keyed by name
type Registry struct {
	profiles map[string]Profile
	keys     []string
}

// NewRegistry validates profiles and builds a registry. A "default" profile is required.
func NewRegistry(profiles []Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}

	for _, p := range profiles {
		if p.Key == "" {
			return nil, errors.NewValidationError("key", "profile key must not be empty", p.Key)
		}
		if _, dup := r.profiles[p.Key]; dup {
			return nil, errors.NewValidationError("key", "duplicate profile", p.Key)
		}
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, errors.NewValidationError("system_prompt", "must not be empty", p.Key)
		}
		if strings.TrimSpace(p.WalletResponse) == "" {
			return nil, errors.NewValidationError("wallet_response", "must not be empty", p.Key)
		}
		r.profiles[p.Key] = p
		r.keys = append(r.keys, p.Key)
	}

	if _, ok := r.profiles[DefaultKey]; !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "profile %q", DefaultKey)
	}

	sort.Strings(r.keys)
	return r, nil
}

// LoadEmbedded decodes the bundled profiles and substitutes the wallet address
func LoadEmbedded(walletAddress string) (*Registry, error) {
	data, err := embedded.ReadFile("data/personalities.toml")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded personalities")
	}
	return Parse(string(data), walletAddress)
}

// Parse decodes a TOML document of [key] tables into a registry
func Parse(doc string, walletAddress string) (*Registry, error) {
	var raw map[string]Profile
	if _, err := toml.Decode(doc, &raw); err != nil {
		return nil, errors.Wrap(err, "decode personalities")
	}

	profiles := make([]Profile, 0, len(raw))
	for key, p := range raw {
		p.Key = key
		p.WalletResponse = strings.ReplaceAll(p.WalletResponse, walletPlaceholder, walletAddress)
		profiles = append(profiles, p)
	}
	return NewRegistry(profiles)
}

// Resolve returns the profile for key, or the default profile. It never fails.
func (r *Registry) Resolve(key string) Profile {
	if p, ok := r.profiles[key]; ok {
		return p
	}
	return r.profiles[DefaultKey]
}

// Has reports whether key names a registered profile
func (r *Registry) Has(key string) bool {
	_, ok := r.profiles[key]
	return ok
}

// Keys returns the registered keys in sorted order
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}
