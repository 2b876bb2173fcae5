package tokenizer

import (
	"errors"
	"math"
	"strings"

	"github.com/wbrown/code_dataset/types"
	"github.com/wbrown/gpt_bpe"
)

// Vocabularies compiled into gpt_bpe.
var embeddedVocabs = []string{
	"gpt2-tokenizer",
	"pile-tokenizer",
	"clip-tokenizer",
	"nerdstash_v1-tokenizer",
	"nerdstash_v2-tokenizer",
	"llama-tokenizer",
	"llama3-tokenizer",
	"mistral-tokenizer",
}

var knownMaxLengths = map[string]int{
	"gpt2":         1024,
	"pile":         2048,
	"clip":         77,
	"nerdstash_v1": 2048,
	"nerdstash_v2": 2048,
	"llama":        4096,
	"llama3":       131072,
	"mistral":      32768,
}

func isEmbedded(id string) bool {
	for _, vocab := range embeddedVocabs {
		if id == vocab || id+"-tokenizer" == vocab {
			return true
		}
	}
	return false
}

type bpeBackend struct {
	encoder   *gpt_bpe.GPTEncoder
	maxLength int
}

// newBPEBackend loads a gpt_bpe encoder, trying the embedded `-tokenizer`
// name before the bare id.
func newBPEBackend(id string) (*bpeBackend, string, error) {
	candidates := []string{id}
	if !strings.HasSuffix(id, "-tokenizer") {
		candidates = []string{id + "-tokenizer", id}
	}
	var errs []error
	for _, candidate := range candidates {
		encoder, err := gpt_bpe.NewEncoder(candidate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		maxLength := knownMaxLengths[strings.TrimSuffix(candidate,
			"-tokenizer")]
		return &bpeBackend{encoder: encoder, maxLength: maxLength},
			candidate, nil
	}
	return nil, "", errors.Join(errs...)
}

func (b *bpeBackend) Encode(text string) (types.Tokens, error) {
	encoded := b.encoder.Encode(&text)
	if encoded == nil {
		return types.Tokens{}, nil
	}
	tokens := make(types.Tokens, len(*encoded))
	for i, t := range *encoded {
		tokens[i] = types.Token(t)
	}
	return tokens, nil
}

func (b *bpeBackend) Decode(tokens types.Tokens) string {
	encoded := make(gpt_bpe.Tokens, len(tokens))
	for i, t := range tokens {
		encoded[i] = gpt_bpe.Token(t)
	}
	return b.encoder.Decode(&encoded)
}

func (b *bpeBackend) Lookup(text string) (types.Token, bool) {
	token := b.encoder.Get(text)
	if token == nil {
		return 0, false
	}
	return types.Token(*token), true
}

// syntheticPad reports whether token is the placeholder `[PAD]` id gpt_bpe
// injects into vocabularies that define no pad token. No model embeds it.
func syntheticPad(token gpt_bpe.Token) bool {
	return token == math.MaxUint16 || token == math.MaxUint32
}

// Specials reports the encoder's EOS, and its pad token only when the
// vocabulary defines one of its own.
func (b *bpeBackend) Specials() Specials {
	eos := types.Token(b.encoder.EosToken)
	specials := Specials{Eos: &eos}
	padToken := b.encoder.PadToken
	if padToken != b.encoder.EosToken && !syntheticPad(padToken) {
		pad := types.Token(padToken)
		specials.Pad = &pad
	}
	return specials
}

func (b *bpeBackend) MaxLength() int {
	return b.maxLength
}
