package code_dataset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/code_dataset/types"
)

func sorted(tokens types.Tokens) types.Tokens {
	out := append(types.Tokens{}, tokens...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func assertPartition(t *testing.T, ids types.Tokens, split *Split) {
	t.Helper()
	union := append(append(types.Tokens{}, split.Train...),
		split.Validation...)
	assert.Equal(t, sorted(ids), sorted(union))
}

func TestSplitTokens_HundredDistinct(t *testing.T) {
	ids := distinctTokens(100)
	split, err := SplitTokens(ids, 0.1, 42)
	require.NoError(t, err)
	assert.Len(t, split.Validation, 10)
	assert.Len(t, split.Train, 90)
	assertPartition(t, ids, split)

	again, err := SplitTokens(ids, 0.1, 42)
	require.NoError(t, err)
	assert.Equal(t, split, again)

	other, err := SplitTokens(ids, 0.1, 7)
	require.NoError(t, err)
	assert.NotEqual(t, split.Validation, other.Validation)
}

func TestSplitTokens_Multiplicity(t *testing.T) {
	ids := types.Tokens{5, 5, 5, 1, 1, 2, 2, 2, 2, 9, 9}
	split, err := SplitTokens(ids, 0.3, 42)
	require.NoError(t, err)
	assert.Len(t, split.Validation, 3)
	assertPartition(t, ids, split)
}

func TestSplitTokens_Sizes(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		testSize   float64
		validation int
	}{
		{"empty", 0, 0.1, 0},
		{"zero test size", 50, 0, 0},
		{"rounds half up", 5, 0.1, 1},
		{"rounds down", 14, 0.1, 1},
		{"near one", 10, 0.99, 10},
		{"near one, larger", 1000, 0.999, 999},
		{"single id", 1, 0.4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := distinctTokens(tt.n)
			split, err := SplitTokens(ids, tt.testSize, DefaultSeed)
			require.NoError(t, err)
			assert.Len(t, split.Validation, tt.validation)
			assert.Len(t, split.Train, tt.n-tt.validation)
			assert.NotNil(t, split.Train)
			assert.NotNil(t, split.Validation)
			assertPartition(t, ids, split)
		})
	}
}

func TestSplitTokens_InvalidTestSize(t *testing.T) {
	for _, testSize := range []float64{-0.1, 1, 1.5} {
		_, err := SplitTokens(distinctTokens(10), testSize, DefaultSeed)
		assert.ErrorIs(t, err, ErrTestSize, "test size %v", testSize)
	}
}
