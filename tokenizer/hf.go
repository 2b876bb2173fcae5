package tokenizer

import (
	"context"

	"github.com/rs/zerolog"
	hftokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/wbrown/code_dataset/resources"
	"github.com/wbrown/code_dataset/types"
)

// hfBackend runs a HuggingFace `tokenizer.json` pipeline.
type hfBackend struct {
	inner     *hftokenizer.Tokenizer
	specials  Specials
	maxLength int
}

func newHFBackend(ctx context.Context, cfg Config,
	logger zerolog.Logger) (*hfBackend, error) {
	resolver := resources.NewResolver(cfg.AuthToken, logger)
	rsrcs, err := resolver.ResolveResources(ctx, cfg.Id, cfg.CacheDir,
		resources.TokenizerEntries())
	if err != nil {
		return nil, err
	}
	defer rsrcs.Cleanup()

	inner, err := pretrained.FromFile(rsrcs["tokenizer.json"].Path)
	if err != nil {
		return nil, err
	}
	config, err := rsrcs.ResolveSpecialTokens()
	if err != nil {
		return nil, err
	}
	backend := &hfBackend{inner: inner, maxLength: config.MaxLength()}
	backend.specials = Specials{
		Eos: backend.special(string(config.EosToken)),
		Pad: backend.special(string(config.PadToken)),
	}
	return backend, nil
}

func (b *hfBackend) special(text string) *types.Token {
	if text == "" {
		return nil
	}
	token, ok := b.Lookup(text)
	if !ok {
		return nil
	}
	return &token
}

func (b *hfBackend) encode(text string, addSpecial bool) (types.Tokens,
	error) {
	encoding, err := b.inner.EncodeSingle(text, addSpecial)
	if err != nil {
		return nil, err
	}
	tokens := make(types.Tokens, len(encoding.Ids))
	for i, id := range encoding.Ids {
		tokens[i] = types.Token(id)
	}
	return tokens, nil
}

// Encode adds the model's special tokens, such as a leading BOS.
func (b *hfBackend) Encode(text string) (types.Tokens, error) {
	return b.encode(text, true)
}

func (b *hfBackend) EncodeRaw(text string) (types.Tokens, error) {
	return b.encode(text, false)
}

func (b *hfBackend) Decode(tokens types.Tokens) string {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = int(t)
	}
	return b.inner.Decode(ids, false)
}

func (b *hfBackend) Lookup(text string) (types.Token, bool) {
	id, ok := b.inner.TokenToId(text)
	if !ok || id < 0 {
		return 0, false
	}
	return types.Token(id), true
}

func (b *hfBackend) Specials() Specials {
	return b.specials
}

func (b *hfBackend) MaxLength() int {
	return b.maxLength
}
