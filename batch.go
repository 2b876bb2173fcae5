package code_dataset

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wbrown/code_dataset/types"
)

// Tokenizer is what the pipeline needs from a loaded tokenizer.
// *tokenizer.Handle satisfies it.
type Tokenizer interface {
	Encode(text string) (types.Tokens, error)
	Decode(tokens types.Tokens) string
	Pad() types.Token
	MaxLength() int
}

// TruncationPolicy decides what happens to a corpus longer than the
// tokenizer's max length.
type TruncationPolicy string

const (
	// TruncateWarn keeps the first MaxLength ids and logs how many were
	// dropped.
	TruncateWarn TruncationPolicy = "warn"
	// TruncateFail returns ErrTruncated.
	TruncateFail TruncationPolicy = "fail"
	// TruncateChunk splits the ids into MaxLength rows.
	TruncateChunk TruncationPolicy = "chunk"
	// TruncateNone keeps every id in one row.
	TruncateNone TruncationPolicy = "none"
)

func ParsePolicy(s string) (TruncationPolicy, error) {
	switch policy := TruncationPolicy(s); policy {
	case TruncateWarn, TruncateFail, TruncateChunk, TruncateNone:
		return policy, nil
	case "":
		return TruncateWarn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// TokenizeCorpus encodes the whole corpus as a single batch element, then
// applies policy against tok.MaxLength(). Rows are padded to the longest
// with tok.Pad().
func TokenizeCorpus(tok Tokenizer, corpus string, policy TruncationPolicy,
	logger zerolog.Logger) (*types.Batch, error) {
	ids, err := tok.Encode(corpus)
	if err != nil {
		return nil, fmt.Errorf("encoding corpus: %w", err)
	}
	if ids == nil {
		ids = types.Tokens{}
	}
	maxLength := tok.MaxLength()
	over := maxLength > 0 && len(ids) > maxLength

	batch := &types.Batch{}
	switch policy {
	case TruncateNone:
		batch.Append(ids)
	case TruncateWarn, "":
		if over {
			logger.Warn().
				Int("tokens", len(ids)).
				Int("max_length", maxLength).
				Int("dropped", len(ids)-maxLength).
				Msg("corpus truncated to the tokenizer's max length")
			ids = ids[:maxLength]
		}
		batch.Append(ids)
	case TruncateFail:
		if over {
			return nil, fmt.Errorf("%w: %d tokens, max length %d",
				ErrTruncated, len(ids), maxLength)
		}
		batch.Append(ids)
	case TruncateChunk:
		if !over {
			batch.Append(ids)
			break
		}
		for start := 0; start < len(ids); start += maxLength {
			end := start + maxLength
			if end > len(ids) {
				end = len(ids)
			}
			batch.Append(ids[start:end:end])
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	batch.PadToLongest(tok.Pad())
	logger.Debug().
		Int("rows", batch.Rows()).
		Int("columns", batch.Width()).
		Msg("tokenized corpus")
	return batch, nil
}
