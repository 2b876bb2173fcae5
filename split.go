package code_dataset

import (
	"fmt"
	"math"

	"github.com/wbrown/code_dataset/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

const (
	DefaultTestSize = 0.1
	DefaultSeed     = 42
)

// Split is a partition of token ids into training and validation subsets.
type Split struct {
	Train      types.Tokens
	Validation types.Tokens
}

// ValidationSize is round(testSize * n), with halves rounded up.
func ValidationSize(n int, testSize float64) int {
	return int(math.Floor(testSize*float64(n) + 0.5))
}

// SplitTokens partitions ids at random into validation and training
// subsets. The draw is fully determined by seed.
func SplitTokens(ids types.Tokens, testSize float64,
	seed uint64) (*Split, error) {
	if math.IsNaN(testSize) || testSize < 0 || testSize >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrTestSize, testSize)
	}
	n := len(ids)
	nVal := ValidationSize(n, testSize)
	src := rand.NewSource(seed)

	valIdxs := make([]int, nVal)
	if nVal > 0 {
		sampleuv.WithoutReplacement(valIdxs, n, src)
	}
	inVal := make([]bool, n)
	split := &Split{
		Train:      make(types.Tokens, 0, n-nVal),
		Validation: make(types.Tokens, 0, nVal),
	}
	for _, idx := range valIdxs {
		inVal[idx] = true
		split.Validation = append(split.Validation, ids[idx])
	}

	trainIdxs := make([]int, 0, n-nVal)
	for idx := range ids {
		if !inVal[idx] {
			trainIdxs = append(trainIdxs, idx)
		}
	}
	rand.New(src).Shuffle(len(trainIdxs), func(i, j int) {
		trainIdxs[i], trainIdxs[j] = trainIdxs[j], trainIdxs[i]
	})
	for _, idx := range trainIdxs {
		split.Train = append(split.Train, ids[idx])
	}
	return split, nil
}
