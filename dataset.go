package code_dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/wbrown/code_dataset/resources"
	"github.com/wbrown/code_dataset/types"
)

const (
	DatasetFile     = "codebase_dataset.json"
	TrainTextFile   = "train.txt"
	ValTextFile     = "val.txt"
	TrainTokensFile = "train.tokens"
	ValTokensFile   = "val.tokens"

	decodeCacheSize = 65536
)

// Subset is one side of the split as it appears in the JSON dataset.
type Subset struct {
	InputIds types.Tokens `json:"input_ids"`
}

// Dataset is the JSON document written to DatasetFile.
type Dataset struct {
	Train      Subset `json:"train"`
	Validation Subset `json:"validation"`
}

func NewDataset(split *Split) Dataset {
	dataset := Dataset{
		Train:      Subset{InputIds: split.Train},
		Validation: Subset{InputIds: split.Validation},
	}
	if dataset.Train.InputIds == nil {
		dataset.Train.InputIds = types.Tokens{}
	}
	if dataset.Validation.InputIds == nil {
		dataset.Validation.InputIds = types.Tokens{}
	}
	return dataset
}

// writeAtomic writes to a temporary file next to path, and renames it into
// place once write succeeds.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	buffered := bufio.NewWriter(tmp)
	if err := write(buffered); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := buffered.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteDatasetJSON writes split as {"train": {"input_ids": [...]},
// "validation": {"input_ids": [...]}}.
func WriteDatasetJSON(path string, split *Split) error {
	return writeAtomic(path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "    ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(NewDataset(split))
	})
}

var lineEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

// Decoder renders single ids as text, memoizing each id's decoding.
type Decoder struct {
	tok   Tokenizer
	cache *lru.ARCCache
}

func NewDecoder(tok Tokenizer) *Decoder {
	cache, _ := lru.NewARC(decodeCacheSize)
	return &Decoder{tok: tok, cache: cache}
}

// Piece returns the decoding of a single id, escaped to fit on one line.
func (d *Decoder) Piece(token types.Token) string {
	if cached, ok := d.cache.Get(token); ok {
		return cached.(string)
	}
	piece := lineEscaper.Replace(d.tok.Decode(types.Tokens{token}))
	d.cache.Add(token, piece)
	return piece
}

// WriteDecoded writes one line per id, holding that id's decoding.
func (d *Decoder) WriteDecoded(path string, tokens types.Tokens) error {
	return writeAtomic(path, func(w io.Writer) error {
		for _, token := range tokens {
			if _, err := io.WriteString(w, d.Piece(token)+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteDecoded writes one line per id with a fresh Decoder around tok.
func WriteDecoded(path string, tokens types.Tokens, tok Tokenizer) error {
	return NewDecoder(tok).WriteDecoded(path, tokens)
}

// WriteTokens writes tokens as little-endian integers. 32-bit output is used
// when use32 is set or an id does not fit in 16 bits.
func WriteTokens(path string, tokens types.Tokens, use32 bool) error {
	bin, err := tokens.PackBinary(tokens.ByteWidth(use32))
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(bin)
		return err
	})
}

// ReadTokens reads a file written by WriteTokens.
func ReadTokens(path string, use32 bool) (types.Tokens, error) {
	mapped, err := resources.MapFile(path)
	if err != nil {
		return nil, err
	}
	defer mapped.Close()
	width := types.TokenSize
	if use32 {
		width = types.TokenSize32
	}
	tokens, err := types.UnpackTokens(mapped.Bytes(), width)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tokens, nil
}

// SaveOptions selects which artifacts Save writes into OutputDir.
type SaveOptions struct {
	OutputDir string
	JSON      bool
	Text      bool
	Binary    bool
	Out32     bool
}

// Save writes the selected artifacts for split, decoding with tok, and
// returns the paths it wrote.
func Save(split *Split, tok Tokenizer, opts SaveOptions,
	logger zerolog.Logger) ([]string, error) {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	var written []string
	record := func(path string, err error) error {
		if err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("wrote")
		written = append(written, path)
		return nil
	}

	if opts.JSON {
		path := filepath.Join(outDir, DatasetFile)
		if err := record(path, WriteDatasetJSON(path, split)); err != nil {
			return written, err
		}
	}
	if opts.Text {
		decoder := NewDecoder(tok)
		for _, out := range []struct {
			name   string
			tokens types.Tokens
		}{{TrainTextFile, split.Train}, {ValTextFile, split.Validation}} {
			path := filepath.Join(outDir, out.name)
			if err := record(path,
				decoder.WriteDecoded(path, out.tokens)); err != nil {
				return written, err
			}
		}
	}
	if opts.Binary {
		use32 := opts.Out32 || split.Train.NeedsUint32() ||
			split.Validation.NeedsUint32()
		for _, out := range []struct {
			name   string
			tokens types.Tokens
		}{{TrainTokensFile, split.Train}, {ValTokensFile, split.Validation}} {
			path := filepath.Join(outDir, out.name)
			if err := record(path,
				WriteTokens(path, out.tokens, use32)); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Detokenize decodes the binary token file at inPath with tok, and writes
// the text to outPath.
func Detokenize(tok Tokenizer, inPath string, outPath string,
	use32 bool) (int, error) {
	tokens, err := ReadTokens(inPath, use32)
	if err != nil {
		return 0, err
	}
	text := tok.Decode(tokens)
	return len(tokens), writeAtomic(outPath, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}
