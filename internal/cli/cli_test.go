package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomrag/internal/domain"
)

const keyEnv = "SYMPTOMRAG_CLI_TEST_KEY"

const table = "diseases,fever,cough,rash,itching\n" +
	"Flu,1,1,0,0\n" +
	"Eczema,0,0,1,1\n"

func writeConfig(t *testing.T, store, extra string) (cfgPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	dataPath = filepath.Join(dir, "symptoms.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(table), 0o644))
	embedder := "tfidf"
	if store != "memory" {
		embedder = "openai"
	}
	cfg := fmt.Sprintf(`openai:
  api_key_env: %s
%s
embedder:
  type: %s
corpus:
  data_file: %s
vector_store:
  type: %s
  sqlite:
    dir: %s
    archive_url: ""
`, keyEnv, extra, embedder, dataPath, store, filepath.Join(dir, "symptom_db"))
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dataPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommandWithIO(&bytes.Buffer{}, &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatus_MemoryStore(t *testing.T) {
	t.Setenv(keyEnv, "")
	cfg, _ := writeConfig(t, "memory", "")

	out, err := run(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "store:      memory")
	assert.Contains(t, out, "documents:  2")
	assert.Contains(t, out, "chat:       unavailable")
}

func TestStatus_SQLiteNotBuilt(t *testing.T) {
	t.Setenv(keyEnv, "sk-test")
	cfg, _ := writeConfig(t, "sqlite", "")

	out, err := run(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "documents:  unavailable")
}

func TestAsk_Sources(t *testing.T) {
	t.Setenv(keyEnv, "")
	cfg, _ := writeConfig(t, "memory", "")

	out, err := run(t, "ask", "--config", cfg, "-k", "1", "--sources", "itching", "rash")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Eczema")
	assert.NotContains(t, out, "Flu")
}

func TestAsk_WithoutChatModel(t *testing.T) {
	t.Setenv(keyEnv, "")
	cfg, _ := writeConfig(t, "memory", "")

	_, err := run(t, "ask", "--config", cfg, "fever")
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)
}

func TestAsk_Answers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"This may be the flu."}}]}`))
	}))
	defer server.Close()
	t.Setenv(keyEnv, "sk-test")
	cfg, _ := writeConfig(t, "memory", "  base_url: "+server.URL)

	out, err := run(t, "ask", "--config", cfg, "I have a fever")
	require.NoError(t, err)
	assert.Equal(t, "This may be the flu.\n", out)
}

func TestBuild_ReportsCounts(t *testing.T) {
	t.Setenv(keyEnv, "")
	cfg, data := writeConfig(t, "memory", "")

	out, err := run(t, "build", "--config", cfg, "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 documents in 1 batches")
	assert.Contains(t, out, "now holds 2 documents")
}

func TestBuild_MalformedTable(t *testing.T) {
	t.Setenv(keyEnv, "")
	cfg, _ := writeConfig(t, "memory", "")
	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("diseases,fever,cough\nFlu,1\n"), 0o644))

	_, err := run(t, "build", "--config", cfg, "--data", bad)
	assert.ErrorIs(t, err, domain.ErrMalformedRow)
}

func TestFetch_RequiresArchive(t *testing.T) {
	t.Setenv(keyEnv, "sk-test")
	cfg, _ := writeConfig(t, "sqlite", "")

	_, err := run(t, "fetch", "--config", cfg)
	assert.ErrorContains(t, err, "no archive URL")
}

func TestChat_RefusesDegradedStore(t *testing.T) {
	t.Setenv(keyEnv, "sk-test")
	cfg, _ := writeConfig(t, "sqlite", "")

	_, err := run(t, "chat", "--config", cfg)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  type: nope\n"), 0o644))

	_, err := run(t, "status", "--config", path)
	assert.ErrorContains(t, err, "failed to load config")
}
