package code_dataset

import "errors"

var (
	ErrTestSize      = errors.New("test size must be in [0, 1)")
	ErrInvalidUTF8   = errors.New("corpus is not valid UTF-8")
	ErrTruncated     = errors.New("corpus exceeds the tokenizer's max length")
	ErrNoMatches     = errors.New("pattern matched no files")
	ErrUnknownPolicy = errors.New("unknown truncation policy")
)
