package code_dataset

import (
	"github.com/wbrown/code_dataset/types"
)

// runeTokenizer encodes every rune as its code point.
type runeTokenizer struct {
	pad       types.Token
	maxLength int
}

func (r *runeTokenizer) Encode(text string) (types.Tokens, error) {
	tokens := make(types.Tokens, 0, len(text))
	for _, c := range text {
		tokens = append(tokens, types.Token(c))
	}
	return tokens, nil
}

func (r *runeTokenizer) Decode(tokens types.Tokens) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

func (r *runeTokenizer) Pad() types.Token { return r.pad }
func (r *runeTokenizer) MaxLength() int   { return r.maxLength }

func distinctTokens(n int) types.Tokens {
	tokens := make(types.Tokens, n)
	for i := range tokens {
		tokens[i] = types.Token(i + 1000)
	}
	return tokens
}
