package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/llmcap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesModelsAndRetry(t *testing.T) {
	path := writeConfig(t, `
models:
  - alias: main
    provider: anthropic
    model: claude-x
  - alias: fast
    provider: openai
    model: gpt-fast
retry:
  max_attempts: 5
  base_delay: 100ms
  max_delay: 1s
base_path: /data
trust_mode: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Models, 2)
	require.Equal(t, "/data", cfg.BasePath)
	require.True(t, cfg.TrustMode)

	anthropicTable := cfg.AliasTable(ProviderAnthropic)
	require.Equal(t, llmcap.AliasTable{llmcap.AliasMain: "claude-x"}, anthropicTable)

	openaiTable := cfg.AliasTable(ProviderOpenAI)
	require.Equal(t, llmcap.AliasTable{llmcap.AliasFast: "gpt-fast"}, openaiTable)

	retry := cfg.RetryPolicy()
	require.Equal(t, 5, retry.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, retry.BaseDelay)
	require.Equal(t, time.Second, retry.MaxDelay)
}

func TestRetryPolicyFallsBackToDefaults(t *testing.T) {
	cfg := &Config{}
	retry := cfg.RetryPolicy()
	require.Equal(t, llmcap.DefaultRetryPolicy, retry)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadCredentialsWarnsOnMissingKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var warnings []string
	creds := LoadCredentials(func(msg string, keyvals ...any) {
		warnings = append(warnings, msg)
	})
	require.Empty(t, creds.AnthropicAPIKey)
	require.Equal(t, "sk-test", creds.OpenAIAPIKey)
	require.Len(t, warnings, 1)
}
