package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscale/callscore/internal/config"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGenerateConfigYAML_OpenAI(t *testing.T) {
	spec := &ConfigSpec{
		BackendKind:    "openai",
		Model:          "gpt-4o-mini",
		APIKeyEnv:      "OPENAI_API_KEY",
		CheckpointKind: "sqlite",
		CheckpointPath: "callscore.db",
		Workers:        8,
	}

	result, err := GenerateConfigYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "kind: openai")
	assert.Contains(t, result, "model: gpt-4o-mini")
	assert.Contains(t, result, "api_key_env: OPENAI_API_KEY")
	assert.Contains(t, result, "workers: 8")
	assert.Contains(t, result, "kind: sqlite")
	assert.Contains(t, result, "path: callscore.db")
}

func TestGenerateConfigYAML_MockOmitsParams(t *testing.T) {
	spec := &ConfigSpec{
		BackendKind:    "mock",
		CheckpointKind: "memory",
	}

	result, err := GenerateConfigYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "kind: mock")
	assert.NotContains(t, result, "model:")
	assert.NotContains(t, result, "api_key_env:")
	assert.NotContains(t, result, "path:")
}

func TestGenerateConfigYAML_CopilotOmitsAPIKey(t *testing.T) {
	spec := &ConfigSpec{
		BackendKind:    "copilot",
		Model:          "gpt-5",
		CheckpointKind: "file",
		CheckpointPath: "checkpoints",
	}

	result, err := GenerateConfigYAML(spec)
	require.NoError(t, err)

	assert.Contains(t, result, "kind: copilot")
	assert.Contains(t, result, "model: gpt-5")
	assert.NotContains(t, result, "api_key_env:")
	assert.Contains(t, result, "path: checkpoints")
}

func TestGeneratedYAMLLoadsCleanly(t *testing.T) {
	specs := []*ConfigSpec{
		{BackendKind: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", CheckpointKind: "sqlite", CheckpointPath: "callscore.db"},
		{BackendKind: "mock", CheckpointKind: "memory"},
		{BackendKind: "copilot", Model: "gpt-5", CheckpointKind: "file", CheckpointPath: "runs"},
	}

	for _, spec := range specs {
		t.Run(spec.BackendKind, func(t *testing.T) {
			raw, err := GenerateConfigYAML(spec)
			require.NoError(t, err)

			path := writeTempConfig(t, raw)
			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, spec.BackendKind, cfg.Backend.Kind)
			assert.Equal(t, spec.CheckpointKind, cfg.Checkpoint.Kind)
		})
	}
}
