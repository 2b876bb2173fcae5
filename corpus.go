package code_dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/wbrown/code_dataset/resources"
	"github.com/yargevad/filepathx"
)

const DefaultInput = "./data/codebase.txt"

type CorpusOptions struct {
	Sanitize bool
	// S3 is used for `s3://` sources. A client is created from the
	// environment when it is nil.
	S3     S3Client
	Logger zerolog.Logger
}

// ReadCorpus loads the corpus named by source: a file path, a glob of
// files, or an `s3://bucket/key` object.
func ReadCorpus(ctx context.Context, source string,
	opts CorpusOptions) (string, error) {
	var data []byte
	var err error
	switch {
	case isS3URI(source):
		data, err = readS3(ctx, source, opts)
	case isGlob(source):
		data, err = readGlob(ctx, source, opts.Logger)
	default:
		data, err = readFile(source)
	}
	if err != nil {
		return "", err
	}
	if err := validateUTF8(source, data); err != nil {
		return "", err
	}
	corpus := string(data)
	if opts.Sanitize {
		corpus = SanitizeText(corpus)
	}
	opts.Logger.Info().Str("source", source).
		Msgf("read corpus of %s", humanize.Bytes(uint64(len(corpus))))
	return corpus, nil
}

func isGlob(source string) bool {
	return strings.ContainsAny(source, "*?[")
}

// readFile copies a memory-mapped file out before unmapping it.
func readFile(path string) ([]byte, error) {
	mapped, err := resources.MapFile(path)
	if err != nil {
		return nil, err
	}
	defer mapped.Close()
	data := make([]byte, mapped.Len())
	copy(data, mapped.Bytes())
	return data, nil
}

// readGlob concatenates every file matching pattern, in path order.
func readGlob(ctx context.Context, pattern string,
	logger zerolog.Logger) ([]byte, error) {
	paths, err := filepathx.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, pattern)
	}
	sort.Strings(paths)
	var data []byte
	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		fileData, err := readFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", path).
			Str("size", humanize.Bytes(uint64(len(fileData)))).
			Msg("read corpus file")
		data = append(data, fileData...)
	}
	return data, nil
}

func readS3(ctx context.Context, source string,
	opts CorpusOptions) ([]byte, error) {
	bucket, key, err := parseS3URI(source)
	if err != nil {
		return nil, err
	}
	svc := opts.S3
	if svc == nil {
		if svc, err = NewS3Client(); err != nil {
			return nil, err
		}
	}
	return fetchTextFileS3(ctx, svc, bucket, key)
}

// validateUTF8 reports the byte offset of the first invalid sequence.
func validateUTF8(source string, data []byte) error {
	if utf8.Valid(data) {
		return nil
	}
	for offset := 0; offset < len(data); {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			return fmt.Errorf("%w: %s at byte offset %d", ErrInvalidUTF8,
				source, offset)
		}
		offset += size
	}
	return fmt.Errorf("%w: %s", ErrInvalidUTF8, source)
}
