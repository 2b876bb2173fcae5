package types

// Token is a vocabulary id. Ids are opaque to the pipeline until they are
// decoded for output.
type Token uint32
type Tokens []Token

// Mask is one row of an attention mask, 1 for real tokens and 0 for padding.
type Mask []int

// Batch is the tokenizer output for a corpus: one row of ids per batch
// element, and a parallel attention mask.
type Batch struct {
	InputIds      []Tokens `json:"input_ids"`
	AttentionMask []Mask   `json:"attention_mask"`
}

const (
	TokenSize   = 2
	TokenSize32 = 4
	MaxToken16  = 65535
)
