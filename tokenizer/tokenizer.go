// Package tokenizer loads pretrained tokenizers behind a single handle, so
// that the same vocabulary encodes the corpus and decodes its output.
package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wbrown/code_dataset/types"
)

var (
	ErrUnknownBackend = errors.New("unknown tokenizer backend")
	ErrBadToken       = errors.New("token does not resolve to a single id")
)

const (
	BackendAuto = "auto"
	BackendBPE  = "bpe"
	BackendHF   = "hf"

	DefaultId = "gpt2-tokenizer"
)

type Config struct {
	Id        string
	Backend   string
	PadToken  string
	MaxLength int
	CacheDir  string
	AuthToken string
}

// DefaultCacheDir returns the directory hub resources for id are cached in.
func DefaultCacheDir(id string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "code_dataset",
		strings.ReplaceAll(id, "/", "_"))
}

func (cfg Config) withDefaults() Config {
	if cfg.Id == "" {
		cfg.Id = DefaultId
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendAuto
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir(cfg.Id)
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("HF_TOKEN")
	}
	return cfg
}

// Specials are the special tokens a backend defines, nil when absent.
type Specials struct {
	Eos *types.Token
	Pad *types.Token
}

// Backend is a concrete tokenizer implementation.
type Backend interface {
	Encode(text string) (types.Tokens, error)
	Decode(tokens types.Tokens) string
	// Lookup finds text as a single entry of the vocabulary.
	Lookup(text string) (types.Token, bool)
	Specials() Specials
	// MaxLength is the model-defined maximum sequence length, 0 if unbounded.
	MaxLength() int
}

// rawEncoder is implemented by backends whose Encode adds special tokens.
type rawEncoder interface {
	EncodeRaw(text string) (types.Tokens, error)
}

// Handle is a loaded tokenizer with its pad token settled.
type Handle struct {
	name      string
	backend   Backend
	pad       types.Token
	eos       types.Token
	maxLength int
	log       zerolog.Logger
}

// Load resolves cfg.Id to a backend and wraps it in a Handle.
func Load(ctx context.Context, cfg Config,
	logger zerolog.Logger) (*Handle, error) {
	cfg = cfg.withDefaults()
	var backend Backend
	var name string
	var err error
	switch cfg.Backend {
	case BackendBPE:
		backend, name, err = newBPEBackend(cfg.Id)
	case BackendHF:
		backend, err = newHFBackend(ctx, cfg, logger)
		name = cfg.Id
	case BackendAuto:
		backend, name, err = autoBackend(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", cfg.Id, err)
	}
	return New(name, backend, cfg, logger)
}

func autoBackend(ctx context.Context, cfg Config,
	logger zerolog.Logger) (Backend, string, error) {
	switch {
	case isEmbedded(cfg.Id):
		return newBPEBackend(cfg.Id)
	case fileExists(filepath.Join(cfg.Id, "tokenizer.json")):
		backend, err := newHFBackend(ctx, cfg, logger)
		return backend, cfg.Id, err
	case fileExists(filepath.Join(cfg.Id, "vocab.json")):
		return newBPEBackend(cfg.Id)
	}
	backend, hfErr := newHFBackend(ctx, cfg, logger)
	if hfErr == nil {
		return backend, cfg.Id, nil
	}
	logger.Debug().Err(hfErr).Str("tokenizer", cfg.Id).
		Msg("no tokenizer.json, falling back to bpe")
	bpe, name, bpeErr := newBPEBackend(cfg.Id)
	if bpeErr != nil {
		return nil, "", errors.Join(hfErr, bpeErr)
	}
	return bpe, name, nil
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}

// New wraps backend in a Handle. A configured pad token must resolve to one
// id; without one, the backend's pad token is used, and failing that the EOS
// token stands in for it.
func New(name string, backend Backend, cfg Config,
	logger zerolog.Logger) (*Handle, error) {
	log := logger.With().Str("tokenizer", name).Logger()
	specials := backend.Specials()
	handle := &Handle{
		name:      name,
		backend:   backend,
		maxLength: backend.MaxLength(),
		log:       log,
	}
	if cfg.MaxLength > 0 {
		handle.maxLength = cfg.MaxLength
	}

	switch {
	case specials.Eos != nil:
		handle.eos = *specials.Eos
	case specials.Pad != nil:
		handle.eos = *specials.Pad
	case cfg.PadToken == "":
		return nil, fmt.Errorf("%w: tokenizer %s has neither a pad nor "+
			"an eos token", ErrBadToken, name)
	}

	switch {
	case cfg.PadToken != "":
		pad, err := resolveToken(backend, cfg.PadToken)
		if err != nil {
			return nil, err
		}
		handle.pad = pad
		if specials.Eos == nil && specials.Pad == nil {
			handle.eos = pad
		}
	case specials.Pad != nil:
		handle.pad = *specials.Pad
	default:
		handle.pad = handle.eos
		log.Warn().Uint32("eos", uint32(handle.eos)).
			Msg("no pad token defined, using eos token for padding")
	}
	return handle, nil
}

// resolveToken turns the text of a token into its id: a direct vocabulary
// lookup first, then a numeric id that decodes to a piece, then an encode
// that must yield exactly one token.
func resolveToken(backend Backend, text string) (types.Token, error) {
	text = strings.ReplaceAll(text, "\\n", "\n")
	if token, ok := backend.Lookup(text); ok {
		return token, nil
	}
	if id, err := strconv.ParseUint(text, 10, 32); err == nil {
		token := types.Token(id)
		if backend.Decode(types.Tokens{token}) == "" {
			return 0, fmt.Errorf("%w: id %d is not in the vocabulary",
				ErrBadToken, id)
		}
		return token, nil
	}
	var encoded types.Tokens
	var err error
	if raw, ok := backend.(rawEncoder); ok {
		encoded, err = raw.EncodeRaw(text)
	} else {
		encoded, err = backend.Encode(text)
	}
	if err != nil {
		return 0, err
	}
	if len(encoded) != 1 {
		return 0, fmt.Errorf("%w: %q encodes to %d tokens", ErrBadToken,
			text, len(encoded))
	}
	return encoded[0], nil
}

func (h *Handle) Encode(text string) (types.Tokens, error) {
	return h.backend.Encode(text)
}

func (h *Handle) Decode(tokens types.Tokens) string {
	return h.backend.Decode(tokens)
}

func (h *Handle) TokenId(text string) (types.Token, bool) {
	token, err := resolveToken(h.backend, text)
	return token, err == nil
}

func (h *Handle) Pad() types.Token {
	return h.pad
}

func (h *Handle) Eos() types.Token {
	return h.eos
}

// MaxLength is the sequence length the handle truncates to, 0 if unbounded.
func (h *Handle) MaxLength() int {
	return h.maxLength
}

func (h *Handle) Name() string {
	return h.name
}
