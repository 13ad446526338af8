package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	require.Len(t, roster, 8)

	seen := make(map[string]bool)
	for _, def := range roster {
		assert.NotEmpty(t, def.ID)
		assert.NotEmpty(t, def.Role)
		assert.NotEmpty(t, def.Instructions)
		assert.Greater(t, def.MaxOutputTokens, 0)
		assert.False(t, seen[def.ID], "duplicate id %s", def.ID)
		seen[def.ID] = true
	}

	for _, id := range []string{
		AgentScout, AgentResolver, AgentEnricher, AgentValuator,
		AgentCompliance, AgentOutreach, AgentDiligence, AgentIntegrator,
	} {
		assert.True(t, seen[id], "missing %s", id)
	}
}

func TestLoadOverlayAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"scout:\n  temperature: 0.9\n  max_output_tokens: 4096\n"+
			"compliance:\n  instructions: stricter review\n"), 0o644))

	roster, err := LoadOverlay(path, DefaultRoster())
	require.NoError(t, err)

	byID := make(map[string]Definition)
	for _, def := range roster {
		byID[def.ID] = def
	}

	assert.Equal(t, 0.9, byID[AgentScout].Temperature)
	assert.Equal(t, 4096, byID[AgentScout].MaxOutputTokens)
	assert.Equal(t, "stricter review", byID[AgentCompliance].Instructions)

	// Untouched fields keep their defaults.
	assert.Equal(t, "Deal Scout", byID[AgentScout].DisplayName)
	assert.Equal(t, 0.1, byID[AgentCompliance].Temperature)
}

func TestLoadOverlayZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outreach:\n  temperature: 0\n"), 0o644))

	roster, err := LoadOverlay(path, DefaultRoster())
	require.NoError(t, err)

	for _, def := range roster {
		if def.ID == AgentOutreach {
			assert.Equal(t, 0.0, def.Temperature)
		}
	}
}

func TestLoadOverlayUnknownAgent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stranger:\n  temperature: 0.5\n"), 0o644))

	_, err := LoadOverlay(path, DefaultRoster())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stranger")
}

func TestLoadOverlayMissingFile(t *testing.T) {
	roster, err := LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml"), DefaultRoster())
	require.NoError(t, err)
	assert.Len(t, roster, 8)
}

func TestLoadOverlayEmptyPath(t *testing.T) {
	roster, err := LoadOverlay("", DefaultRoster())
	require.NoError(t, err)
	assert.Len(t, roster, 8)
}
