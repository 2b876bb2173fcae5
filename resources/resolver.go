package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrRequired = errors.New("required resource missing")
)

const DefaultHubURL = "https://huggingface.co"

type ResourceFlag uint8

// WriteCounter counts the number of bytes written to it, and every 10 seconds,
// it logs a message reporting the number of bytes written so far.
type WriteCounter struct {
	Total  uint64
	Last   time.Time
	Path   string
	Size   uint64
	Logger zerolog.Logger
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	if time.Since(wc.Last).Seconds() > 10 {
		wc.Last = time.Now()
		wc.Logger.Info().
			Str("resource", wc.Path).
			Msgf("downloading... %s / %s completed",
				humanize.Bytes(wc.Total), humanize.Bytes(wc.Size))
	}
	return n, nil
}

// Enumeration of resource flags that indicate what the resolver should do
// with the resource.
const (
	RESOURCE_REQUIRED ResourceFlag = 1 << iota
	RESOURCE_OPTIONAL
)

type ResourceEntryDefs map[string]ResourceFlag

type ResourceEntry struct {
	Path   string
	Data   []byte
	mapped *Mapped
}

type Resources map[string]ResourceEntry

func (rsrcs Resources) Cleanup() {
	for name, rsrc := range rsrcs {
		if rsrc.mapped != nil {
			rsrc.mapped.Close()
		}
		delete(rsrcs, name)
	}
}

// Has reports whether the named resource was resolved.
func (rsrcs Resources) Has(name string) bool {
	_, ok := rsrcs[name]
	return ok
}

// AddEntry maps the file at path and records it under name.
func (rsrcs Resources) AddEntry(name string, path string) error {
	mapped, mmapErr := MapFile(path)
	if mmapErr != nil {
		return mmapErr
	}
	rsrcs[name] = ResourceEntry{Path: path, Data: mapped.Bytes(),
		mapped: mapped}
	return nil
}

// TokenizerEntries
// Returns the resource entries that a `tokenizer.json` style tokenizer needs.
func TokenizerEntries() ResourceEntryDefs {
	return ResourceEntryDefs{
		"tokenizer.json":          RESOURCE_REQUIRED,
		"tokenizer_config.json":   RESOURCE_OPTIONAL,
		"special_tokens_map.json": RESOURCE_OPTIONAL,
		"config.json":             RESOURCE_OPTIONAL,
	}
}

// DownloadEntries
// Returns the resource entries worth caching for any tokenizer kind: a
// `tokenizer.json` pipeline, or a `vocab.json` and `merges.txt` pair.
func DownloadEntries() ResourceEntryDefs {
	defs := TokenizerEntries()
	defs["tokenizer.json"] = RESOURCE_OPTIONAL
	defs["vocab.json"] = RESOURCE_OPTIONAL
	defs["merges.txt"] = RESOURCE_OPTIONAL
	return defs
}

// Resolver fetches tokenizer resources from local directories, arbitrary
// HTTP servers, or a HuggingFace style hub.
type Resolver struct {
	Client    *http.Client
	AuthToken string
	HubURL    string
	Logger    zerolog.Logger
}

func NewResolver(authToken string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		Client:    http.DefaultClient,
		AuthToken: authToken,
		HubURL:    DefaultHubURL,
		Logger:    logger,
	}
}

func isValidUrl(toTest string) bool {
	if _, err := url.ParseRequestURI(toTest); err != nil {
		return false
	}
	u, err := url.Parse(toTest)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return true
}

// IsLocal reports whether uri names a directory on the local filesystem.
func IsLocal(uri string) bool {
	stat, err := os.Stat(uri)
	return err == nil && stat.IsDir()
}

func (r *Resolver) hubURI(id string) string {
	hub := r.HubURL
	if hub == "" {
		hub = DefaultHubURL
	}
	return strings.TrimSuffix(hub, "/") + "/" + id + "/resolve/main"
}

func (r *Resolver) client() *http.Client {
	if r.Client == nil {
		return http.DefaultClient
	}
	return r.Client
}

// Fetch
// Given a base URI and a resource name, determines if the resource is local,
// remote, or from the hub, and returns a ReadCloser over its contents.
func (r *Resolver) Fetch(ctx context.Context, uri string,
	rsrc string) (io.ReadCloser, error) {
	switch {
	case isValidUrl(uri):
		return FetchHTTP(ctx, r.client(), uri, rsrc, r.AuthToken)
	case IsLocal(uri):
		handle, fileErr := os.Open(filepath.Join(uri, rsrc))
		if errors.Is(fileErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, uri, rsrc)
		}
		return handle, fileErr
	default:
		return FetchHTTP(ctx, r.client(), r.hubURI(uri), rsrc, r.AuthToken)
	}
}

// Size
// Given a base URI and a resource name, determine the size of the resource.
func (r *Resolver) Size(ctx context.Context, uri string,
	rsrc string) (uint64, error) {
	switch {
	case isValidUrl(uri):
		return SizeHTTP(ctx, r.client(), uri, rsrc, r.AuthToken)
	case IsLocal(uri):
		fsz, err := os.Stat(filepath.Join(uri, rsrc))
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, uri, rsrc)
		} else if err != nil {
			return 0, err
		}
		return uint64(fsz.Size()), nil
	default:
		return SizeHTTP(ctx, r.client(), r.hubURI(uri), rsrc, r.AuthToken)
	}
}

// ResolveResources resolves all resources in defs at a given uri. Local
// directories are mapped in place; remote resources are cached in dir and
// only downloaded when the cached copy is missing or of the wrong size.
func (r *Resolver) ResolveResources(ctx context.Context, uri string,
	dir string, defs ResourceEntryDefs) (Resources, error) {
	foundResources := make(Resources, len(defs))
	local := IsLocal(uri)
	if !local {
		if dirErr := os.MkdirAll(dir, 0755); dirErr != nil {
			return nil, fmt.Errorf("cannot create cache dir %s: %w",
				dir, dirErr)
		}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, file := range names {
		flag := defs[file]
		if ctxErr := ctx.Err(); ctxErr != nil {
			foundResources.Cleanup()
			return nil, ctxErr
		}
		log := r.Logger.With().Str("resource", uri+"/"+file).Logger()
		log.Debug().Msg("resolving")
		rsrcSize, rsrcSizeErr := r.Size(ctx, uri, file)
		if rsrcSizeErr != nil {
			if flag&RESOURCE_REQUIRED != 0 {
				foundResources.Cleanup()
				return nil, fmt.Errorf(
					"%w: cannot retrieve `%s` from `%s`: %w",
					ErrRequired, file, uri, rsrcSizeErr)
			}
			log.Debug().Msg("not there, not required")
			continue
		}

		targetPath := filepath.Join(dir, file)
		if local {
			targetPath = filepath.Join(uri, file)
		} else if targetStat, statErr := os.Stat(targetPath); statErr == nil &&
			uint64(targetStat.Size()) == rsrcSize {
			log.Debug().Msg("already cached, and of the correct size")
		} else if dlErr := r.download(ctx, uri, file, targetPath,
			rsrcSize); dlErr != nil {
			foundResources.Cleanup()
			return nil, dlErr
		}

		if mmapErr := foundResources.AddEntry(file,
			targetPath); mmapErr != nil {
			foundResources.Cleanup()
			return nil, mmapErr
		}
	}
	return foundResources, nil
}

func (r *Resolver) download(ctx context.Context, uri string, file string,
	targetPath string, size uint64) error {
	rsrcReader, rsrcErr := r.Fetch(ctx, uri, file)
	if rsrcErr != nil {
		return fmt.Errorf("cannot retrieve `%s` from `%s`: %w",
			file, uri, rsrcErr)
	}
	defer rsrcReader.Close()

	tmp, tmpErr := os.CreateTemp(filepath.Dir(targetPath),
		"."+filepath.Base(targetPath)+".*")
	if tmpErr != nil {
		return fmt.Errorf("error opening '%s' for write: %w", file, tmpErr)
	}
	defer os.Remove(tmp.Name())

	counter := &WriteCounter{
		Last:   time.Now(),
		Path:   uri + "/" + file,
		Size:   size,
		Logger: r.Logger,
	}
	bytesDownloaded, ioErr := io.Copy(tmp, io.TeeReader(rsrcReader, counter))
	closeErr := tmp.Close()
	if ioErr != nil {
		return fmt.Errorf("error downloading '%s': %w", file, ioErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if renameErr := os.Rename(tmp.Name(), targetPath); renameErr != nil {
		return renameErr
	}
	r.Logger.Info().
		Str("resource", uri+"/"+file).
		Msgf("downloaded %s", humanize.Bytes(uint64(bytesDownloaded)))
	return nil
}

// SpecialToken is a special token as it appears in `tokenizer_config.json`
// or `special_tokens_map.json`: either a bare string, or an object carrying
// the string in its `content` field.
type SpecialToken string

func (s *SpecialToken) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = SpecialToken(t)
	case map[string]interface{}:
		content, ok := t["content"].(string)
		if !ok {
			return fmt.Errorf("unknown special token format: %s", data)
		}
		*s = SpecialToken(content)
	default:
		// null, or a list such as `additional_special_tokens`.
		*s = ""
	}
	return nil
}

// TokenizerConfig contains the fields of `tokenizer_config.json` that the
// tokenizer loader uses.
type TokenizerConfig struct {
	ModelMaxLength float64      `json:"model_max_length,omitempty"`
	PadToken       SpecialToken `json:"pad_token,omitempty"`
	EosToken       SpecialToken `json:"eos_token,omitempty"`
	BosToken       SpecialToken `json:"bos_token,omitempty"`
}

// MaxLength returns the model's maximum sequence length, or 0 when the
// configuration leaves it unset or uses a sentinel for "unbounded".
func (c *TokenizerConfig) MaxLength() int {
	if c.ModelMaxLength <= 0 || c.ModelMaxLength > math.MaxInt32 {
		return 0
	}
	return int(c.ModelMaxLength)
}

// ResolveSpecialTokens
// Builds the tokenizer configuration from `tokenizer_config.json`, filling
// tokens it does not name from `special_tokens_map.json`.
func (rsrcs Resources) ResolveSpecialTokens() (*TokenizerConfig, error) {
	config := &TokenizerConfig{}
	if entry, ok := rsrcs["tokenizer_config.json"]; ok {
		if err := json.Unmarshal(entry.Data, config); err != nil {
			return nil, fmt.Errorf(
				"cannot unmarshal `tokenizer_config.json`: %w", err)
		}
	}
	entry, ok := rsrcs["special_tokens_map.json"]
	if !ok {
		return config, nil
	}
	var specials TokenizerConfig
	if err := json.Unmarshal(entry.Data, &specials); err != nil {
		return nil, fmt.Errorf(
			"cannot unmarshal `special_tokens_map.json`: %w", err)
	}
	if config.PadToken == "" {
		config.PadToken = specials.PadToken
	}
	if config.EosToken == "" {
		config.EosToken = specials.EosToken
	}
	if config.BosToken == "" {
		config.BosToken = specials.BosToken
	}
	return config, nil
}
