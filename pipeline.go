package code_dataset

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/wbrown/code_dataset/tokenizer"
	"github.com/wbrown/code_dataset/types"
)

var _ Tokenizer = (*tokenizer.Handle)(nil)

// Config is everything a pipeline run needs.
type Config struct {
	Input      string
	Sanitize   bool
	Tokenizer  tokenizer.Config
	Truncation TruncationPolicy
	TestSize   float64
	Seed       uint64
	Output     SaveOptions
}

func DefaultConfig() Config {
	return Config{
		Input: DefaultInput,
		Tokenizer: tokenizer.Config{
			Id:      tokenizer.DefaultId,
			Backend: tokenizer.BackendAuto,
		},
		Truncation: TruncateWarn,
		TestSize:   DefaultTestSize,
		Seed:       DefaultSeed,
		Output: SaveOptions{
			OutputDir: ".",
			JSON:      true,
			Text:      true,
		},
	}
}

// Pipeline runs corpus -> batch -> split -> artifacts with one tokenizer
// handle. Each stage runs the stages before it.
type Pipeline struct {
	Config Config
	Logger zerolog.Logger
	// Tokenizer is loaded from Config.Tokenizer when nil.
	Tokenizer Tokenizer
	// S3 overrides the client used for `s3://` inputs.
	S3 S3Client

	corpus string
}

func NewPipeline(config Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{Config: config, Logger: logger}
}

// Load reads the corpus, and loads the tokenizer if none was supplied. The
// two run concurrently, and the first error cancels the other.
func (p *Pipeline) Load(ctx context.Context) error {
	var handle *tokenizer.Handle
	var corpus string
	tasks := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if p.Tokenizer == nil {
		tasks.Go(func(ctx context.Context) error {
			var err error
			handle, err = tokenizer.Load(ctx, p.Config.Tokenizer, p.Logger)
			return err
		})
	}
	tasks.Go(func(ctx context.Context) error {
		var err error
		corpus, err = ReadCorpus(ctx, p.Config.Input, CorpusOptions{
			Sanitize: p.Config.Sanitize,
			S3:       p.S3,
			Logger:   p.Logger,
		})
		return err
	})
	if err := tasks.Wait(); err != nil {
		return err
	}
	if handle != nil {
		p.Tokenizer = handle
	}
	p.corpus = corpus
	return nil
}

// Tokenize loads, then encodes the corpus. The corpus is released once
// encoded.
func (p *Pipeline) Tokenize(ctx context.Context) (*types.Batch, error) {
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := TokenizeCorpus(p.Tokenizer, p.corpus,
		p.Config.Truncation, p.Logger)
	p.corpus = ""
	return batch, err
}

// Split tokenizes, then partitions the flattened ids.
func (p *Pipeline) Split(ctx context.Context) (*Split, error) {
	batch, err := p.Tokenize(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	split, err := SplitTokens(batch.Flatten(), p.Config.TestSize,
		p.Config.Seed)
	if err != nil {
		return nil, err
	}
	p.Logger.Info().
		Int("train", len(split.Train)).
		Int("validation", len(split.Validation)).
		Msg("split tokens")
	return split, nil
}

// Save splits, then writes the configured artifacts. It returns the split
// and the paths written.
func (p *Pipeline) Save(ctx context.Context) (*Split, []string, error) {
	split, err := p.Split(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	written, err := Save(split, p.Tokenizer, p.Config.Output, p.Logger)
	return split, written, err
}
