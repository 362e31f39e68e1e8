package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Server.MaxFiles)
	assert.Equal(t, 20, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.MaxSources)
	assert.Equal(t, 5, cfg.Conversation.MaxTurns)
	assert.Equal(t, 2, cfg.Conversation.HistoryTurns)
	assert.Equal(t, 380, cfg.Answer.DefinitionChars)
	assert.Equal(t, 700, cfg.Answer.AboutChars)
	assert.Equal(t, 1800, cfg.Answer.DefaultChars)
	assert.Equal(t, 2000, cfg.Answer.EntertainmentChars)
	assert.Equal(t, 200, cfg.Answer.OverflowChars)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 15*time.Second, cfg.Web.Timeout)
	assert.Equal(t, 8*time.Second, cfg.Entertainment.Budget)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
  upload_dir: /tmp/uploads
vectorstore:
  provider: qdrant
  qdrant_host: qdrant.internal
answer:
  default_chars: 1500
web:
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("GEMINI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "/tmp/uploads", cfg.Server.UploadDir)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.QdrantHost)
	assert.Equal(t, 1500, cfg.Answer.DefaultChars)
	assert.Equal(t, 5*time.Second, cfg.Web.Timeout)
	assert.Equal(t, "sk-test", cfg.Gemini.APIKey.Value())
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("VECTORSTORE_PROVIDER", "pinecone")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectorstore.provider")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"same collections", func(c *Config) { c.VectorStore.WebCollection = c.VectorStore.DocsCollection }, "must differ"},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }, "chunk_overlap"},
		{"history beyond window", func(c *Config) { c.Conversation.HistoryTurns = 9 }, "max_turns"},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "word2vec" }, "embedding.provider"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")

	out, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")

	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "hunter2", s.Value())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "gemini.api_key", envKey("GEMINI_API_KEY"))
	assert.Equal(t, "answer.default_chars", envKey("ANSWER_DEFAULT_CHARS"))
	assert.Equal(t, "home", envKey("HOME"))
}
