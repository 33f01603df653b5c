package personality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/pkg/errors"
)

const testWallet = "7CSW7ofgjD8ThrWsNAzTKKYtyqe3QSibsUYcCPFV1AFG"

func TestLoadEmbedded(t *testing.T) {
	reg, err := LoadEmbedded(testWallet)
	require.NoError(t, err)

	keys := reg.Keys()
	assert.Len(t, keys, 12)
	assert.Contains(t, keys, "crypto enthusiast")
	assert.Contains(t, keys, "villain")
	assert.IsIncreasing(t, keys)

	for _, k := range keys {
		p := reg.Resolve(k)
		assert.Equal(t, k, p.Key)
		assert.Contains(t, p.WalletResponse, testWallet, k)
		assert.NotContains(t, p.WalletResponse, "{wallet}", k)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	reg, err := LoadEmbedded(testWallet)
	require.NoError(t, err)

	for _, key := range []string{"", "ninja", "PIRATE"} {
		p := reg.Resolve(key)
		assert.Equal(t, DefaultKey, p.Key)
		assert.Equal(t, "You are a helpful AI assistant.", p.SystemPrompt)
	}

	assert.True(t, reg.Has("pirate"))
	assert.False(t, reg.Has("ninja"))
}

func TestStyleFallback(t *testing.T) {
	reg, err := LoadEmbedded(testWallet)
	require.NoError(t, err)

	assert.Equal(t, DefaultImageStyle, reg.Resolve(DefaultKey).Style())
	assert.Equal(t, "weathered treasure map illustration", reg.Resolve("pirate").Style())
}

func TestNewRegistryRequiresDefault(t *testing.T) {
	_, err := NewRegistry([]Profile{{Key: "pirate", SystemPrompt: "arr", WalletResponse: "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNewRegistryRejectsIncompleteProfile(t *testing.T) {
	_, err := NewRegistry([]Profile{
		{Key: DefaultKey, SystemPrompt: "hi", WalletResponse: "w"},
		{Key: "robot", SystemPrompt: "", WalletResponse: "w"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestParse(t *testing.T) {
	doc := `
[default]
system_prompt = "plain"
wallet_response = "send to {wallet}"
`
	reg, err := Parse(doc, "ABC")
	require.NoError(t, err)
	assert.Equal(t, "send to ABC", reg.Resolve("anything").WalletResponse)

	_, err = Parse("not = [valid", "ABC")
	require.Error(t, err)
}
