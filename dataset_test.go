package code_dataset

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/code_dataset/types"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return bytes.Count(data, []byte("\n"))
}

func TestWriteDatasetJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DatasetFile)
	split := &Split{Train: types.Tokens{3, 1, 2}, Validation: types.Tokens{}}
	require.NoError(t, WriteDatasetJSON(path, split))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string][]int
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 2)
	assert.Equal(t, []int{3, 1, 2}, raw["train"]["input_ids"])
	assert.Equal(t, []int{}, raw["validation"]["input_ids"])
	assert.Contains(t, string(data), "\n    \"train\": {")

	// A rewrite fully replaces the previous contents.
	require.NoError(t, WriteDatasetJSON(path, &Split{}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var dataset Dataset
	require.NoError(t, json.Unmarshal(data, &dataset))
	assert.Empty(t, dataset.Train.InputIds)
	assert.NotContains(t, string(data), "null")
}

func TestWriteDecoded_LineCounts(t *testing.T) {
	dir := t.TempDir()
	tok := &runeTokenizer{}
	tokens, err := tok.Encode("a\nb\\c\r\n  ")
	require.NoError(t, err)

	path := filepath.Join(dir, TrainTextFile)
	require.NoError(t, WriteDecoded(path, tokens, tok))
	assert.Equal(t, len(tokens), countLines(t, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n\\n\nb\n\\\\\nc\n\\r\n\\n\n \n \n", string(data))

	empty := filepath.Join(dir, ValTextFile)
	require.NoError(t, WriteDecoded(empty, types.Tokens{}, tok))
	assert.Equal(t, 0, countLines(t, empty))
}

func TestDecoder_Memoizes(t *testing.T) {
	decoder := NewDecoder(&runeTokenizer{})
	assert.Equal(t, "x", decoder.Piece('x'))
	assert.Equal(t, 1, decoder.cache.Len())
	assert.Equal(t, "x", decoder.Piece('x'))
	assert.Equal(t, 1, decoder.cache.Len())
}

func TestWriteTokens_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	small := types.Tokens{0, 1, 50256, 65535}
	path := filepath.Join(dir, TrainTokensFile)
	require.NoError(t, WriteTokens(path, small, false))
	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, len(small)*types.TokenSize, stat.Size())
	read, err := ReadTokens(path, false)
	require.NoError(t, err)
	assert.Equal(t, small, read)

	large := types.Tokens{1, 128000, 70000}
	require.NoError(t, WriteTokens(path, large, false))
	read, err = ReadTokens(path, true)
	require.NoError(t, err)
	assert.Equal(t, large, read)

	require.NoError(t, WriteTokens(path, types.Tokens{}, false))
	read, err = ReadTokens(path, false)
	require.NoError(t, err)
	assert.Empty(t, read)

	require.NoError(t, os.WriteFile(path, []byte{1, 0, 2}, 0644))
	_, err = ReadTokens(path, false)
	assert.ErrorIs(t, err, types.ErrPartialToken)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	split := &Split{Train: types.Tokens{'a', 'b', 'c'},
		Validation: types.Tokens{'\n'}}
	written, err := Save(split, &runeTokenizer{}, SaveOptions{
		OutputDir: dir,
		JSON:      true,
		Text:      true,
		Binary:    true,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, DatasetFile),
		filepath.Join(dir, TrainTextFile),
		filepath.Join(dir, ValTextFile),
		filepath.Join(dir, TrainTokensFile),
		filepath.Join(dir, ValTokensFile),
	}, written)
	assert.Equal(t, 3, countLines(t, filepath.Join(dir, TrainTextFile)))
	assert.Equal(t, 1, countLines(t, filepath.Join(dir, ValTextFile)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "no temporary files are left behind")
}

func TestDetokenize(t *testing.T) {
	dir := t.TempDir()
	tok := &runeTokenizer{}
	tokens, err := tok.Encode("x := 1\n")
	require.NoError(t, err)
	in := filepath.Join(dir, ValTokensFile)
	require.NoError(t, WriteTokens(in, tokens, true))

	out := filepath.Join(dir, "detokenized.txt")
	count, err := Detokenize(tok, in, out, true)
	require.NoError(t, err)
	assert.Equal(t, len(tokens), count)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "x := 1\n", string(data))
}
