package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	code_dataset "github.com/wbrown/code_dataset"
	"github.com/wbrown/code_dataset/internal/config"
	"github.com/wbrown/code_dataset/resources"
	"github.com/wbrown/code_dataset/tokenizer"
)

// Flags bound to config keys. Only the flags the running command defines
// get bound.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-json":   "log.json",
	"tokenizer":  "tokenizer.id",
	"backend":    "tokenizer.backend",
	"pad-token":  "tokenizer.pad_token",
	"max-length": "tokenizer.max_length",
	"cache-dir":  "tokenizer.cache_dir",
	"sanitize":   "sanitize",
	"truncation": "truncation",
	"test-size":  "split.test_size",
	"seed":       "split.seed",
	"output-dir": "output.dir",
	"binary":     "output.binary",
	"out32":      "output.out32",
}

type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout io.Writer, stderr io.Writer) *app {
	logger, _ := newLogger(stderr, "info", false)
	return &app{
		v:      config.New(),
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if key, ok := flagKeys[flag.Name]; ok {
			bindErr = errors.Join(bindErr, a.v.BindPFlag(key, flag))
		}
	})
	if bindErr != nil {
		return bindErr
	}
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(a.stderr, cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) pipeline(args []string) *code_dataset.Pipeline {
	pipelineConfig := a.cfg.Pipeline()
	if len(args) > 0 {
		pipelineConfig.Input = args[0]
	}
	return code_dataset.NewPipeline(pipelineConfig, a.logger)
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("sanitize", false,
		"normalize line endings and trailing blanks")
	cmd.Flags().String("truncation", string(code_dataset.TruncateWarn),
		"over-length policy [warn, fail, chunk, none]")
}

func addSplitFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("test-size", code_dataset.DefaultTestSize,
		"fraction of tokens held out for validation")
	cmd.Flags().Uint64("seed", code_dataset.DefaultSeed,
		"random seed for the split")
}

func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "code_dataset",
		Short: "Tokenize a codebase and split it into a training dataset",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./code_dataset.yaml)")
	flags.String("log-level", "info", "log level")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("tokenizer", tokenizer.DefaultId,
		"tokenizer id [gpt2, pile, clip, huggingface-id, url, path]")
	flags.String("backend", tokenizer.BackendAuto,
		"tokenizer backend [auto, bpe, hf]")
	flags.String("pad-token", "", "pad token text or id")
	flags.Int("max-length", 0, "max sequence length (0 = model default)")
	flags.String("cache-dir", "", "cache for downloaded tokenizer files")

	tokenizeCmd := &cobra.Command{
		Use:   "tokenize [input]",
		Short: "Tokenize the corpus and print the batch shape",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := a.pipeline(args).Tokenize(cmd.Context())
			if err != nil {
				return err
			}
			first := batch.Flatten()
			if len(first) > 16 {
				first = first[:16]
			}
			fmt.Fprintf(a.stdout, "Batch shape: %d x %d\n", batch.Rows(),
				batch.Width())
			fmt.Fprintf(a.stdout, "First ids: %v\n", first)
			return nil
		},
	}
	addPipelineFlags(tokenizeCmd)

	splitCmd := &cobra.Command{
		Use:   "split [input]",
		Short: "Tokenize the corpus and split it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			split, err := a.pipeline(args).Split(cmd.Context())
			if err != nil {
				return err
			}
			a.printSizes(split)
			return nil
		},
	}
	addPipelineFlags(splitCmd)
	addSplitFlags(splitCmd)

	saveCmd := &cobra.Command{
		Use:   "save [input]",
		Short: "Tokenize, split, and write the dataset files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline := a.pipeline(args)
			if noText, _ := cmd.Flags().GetBool("no-text"); noText {
				pipeline.Config.Output.Text = false
			}
			if noJSON, _ := cmd.Flags().GetBool("no-json"); noJSON {
				pipeline.Config.Output.JSON = false
			}
			split, written, err := pipeline.Save(cmd.Context())
			if err != nil {
				return err
			}
			a.printSizes(split)
			for _, path := range written {
				fmt.Fprintf(a.stdout, "Wrote %s\n", path)
			}
			return nil
		},
	}
	addPipelineFlags(saveCmd)
	addSplitFlags(saveCmd)
	saveCmd.Flags().String("output-dir", ".", "directory to write into")
	saveCmd.Flags().Bool("binary", false,
		"also write train.tokens and val.tokens")
	saveCmd.Flags().Bool("out32", false, "write 32-bit token files")
	saveCmd.Flags().Bool("no-text", false,
		"skip the decoded train.txt and val.txt")
	saveCmd.Flags().Bool("no-json", false,
		"skip "+code_dataset.DatasetFile)

	fetchCmd := &cobra.Command{
		Use:   "fetch <model>",
		Short: "Download tokenizer files for a model URL, path, or hub id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, _ := cmd.Flags().GetString("dest")
			resolver := resources.NewResolver(a.cfg.Tokenizer.AuthToken,
				a.logger)
			rsrcs, err := resolver.ResolveResources(cmd.Context(), args[0],
				dest, resources.DownloadEntries())
			if err != nil {
				return err
			}
			defer rsrcs.Cleanup()
			if len(rsrcs) == 0 {
				return fmt.Errorf("%w: no tokenizer files at %s",
					resources.ErrNotFound, args[0])
			}
			for _, rsrc := range rsrcs {
				fmt.Fprintf(a.stdout, "Resolved %s\n", rsrc.Path)
			}
			return nil
		},
	}
	fetchCmd.Flags().String("dest", "./", "where to download the files to")

	detokenizeCmd := &cobra.Command{
		Use:   "detokenize <file.tokens>",
		Short: "Decode a binary token file back to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in32, _ := cmd.Flags().GetBool("in32")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]),
					"detokenized.txt")
			}
			handle, err := tokenizer.Load(cmd.Context(),
				a.cfg.Pipeline().Tokenizer, a.logger)
			if err != nil {
				return err
			}
			count, err := code_dataset.Detokenize(handle, args[0], output,
				in32)
			if err != nil {
				return err
			}
			a.logger.Info().Int("tokens", count).Str("path", output).
				Msg("detokenized")
			return nil
		},
	}
	detokenizeCmd.Flags().Bool("in32", false, "input tokens are 32-bit")
	detokenizeCmd.Flags().String("output", "",
		"output file (default detokenized.txt next to the input)")

	rootCmd.AddCommand(tokenizeCmd, splitCmd, saveCmd, fetchCmd,
		detokenizeCmd)
	return rootCmd
}

func (a *app) printSizes(split *code_dataset.Split) {
	fmt.Fprintf(a.stdout, "Training samples: %d\n", len(split.Train))
	fmt.Fprintf(a.stdout, "Validation samples: %d\n", len(split.Validation))
}
