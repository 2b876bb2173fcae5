package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	code_dataset "github.com/wbrown/code_dataset"
	"github.com/wbrown/code_dataset/tokenizer"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HF_TOKEN", "")
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, code_dataset.DefaultInput, cfg.Input)
	assert.Equal(t, tokenizer.DefaultId, cfg.Tokenizer.Id)
	assert.Equal(t, tokenizer.BackendAuto, cfg.Tokenizer.Backend)
	assert.Equal(t, 0.1, cfg.Split.TestSize)
	assert.EqualValues(t, 42, cfg.Split.Seed)
	assert.True(t, cfg.Output.JSON)
	assert.True(t, cfg.Output.Text)
	assert.False(t, cfg.Output.Binary)

	pipeline := cfg.Pipeline()
	assert.Equal(t, code_dataset.DefaultConfig(), pipeline)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code_dataset.yaml"),
		[]byte(`
input: src/**/*.go
truncation: chunk
tokenizer:
  id: meta-llama/Llama-3.2-3B
  backend: hf
split:
  test_size: 0.2
  seed: 7
`), 0644))
	t.Setenv("CODE_DATASET_SPLIT_SEED", "99")
	t.Setenv("HF_TOKEN", "hf_secret")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "src/**/*.go", cfg.Input)
	assert.Equal(t, "chunk", cfg.Truncation)
	assert.Equal(t, "meta-llama/Llama-3.2-3B", cfg.Tokenizer.Id)
	assert.Equal(t, tokenizer.BackendHF, cfg.Tokenizer.Backend)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.EqualValues(t, 99, cfg.Split.Seed)
	assert.Equal(t, "hf_secret", cfg.Tokenizer.AuthToken)
	assert.Equal(t, code_dataset.TruncateChunk, cfg.Pipeline().Truncation)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	dir := chdirTemp(t)
	_, err := Load(New(), filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	tests := []struct {
		name string
		key  string
		val  interface{}
		err  error
	}{
		{"test size of one", "split.test_size", 1.0,
			code_dataset.ErrTestSize},
		{"negative test size", "split.test_size", -0.5,
			code_dataset.ErrTestSize},
		{"unknown policy", "truncation", "truncate",
			code_dataset.ErrUnknownPolicy},
		{"unknown backend", "tokenizer.backend", "sentencepiece",
			tokenizer.ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
