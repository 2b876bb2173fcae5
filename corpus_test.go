package code_dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S3MockClient is a mock implementation of S3Client.
type S3MockClient struct {
	GetObjectOutputs map[string]string
	GetObjectError   error
	Requests         []string
}

func (m *S3MockClient) GetObjectWithContext(ctx aws.Context,
	input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput,
	error) {
	m.Requests = append(m.Requests,
		aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key))
	if m.GetObjectError != nil {
		return nil, m.GetObjectError
	}
	content, ok := m.GetObjectOutputs[aws.StringValue(input.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey: The specified key does not exist")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(content)),
		ContentLength: aws.Int64(int64(len(content))),
	}, nil
}

func writeFile(t *testing.T, path string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadCorpus_File(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "codebase.txt"),
		"package main\n\nfunc main() {}\n")
	corpus, err := ReadCorpus(context.Background(), path,
		CorpusOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {}\n", corpus)
}

func TestReadCorpus_EmptyFile(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "empty.txt"), "")
	corpus, err := ReadCorpus(context.Background(), path,
		CorpusOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Empty(t, corpus)
}

func TestReadCorpus_Missing(t *testing.T) {
	_, err := ReadCorpus(context.Background(),
		filepath.Join(t.TempDir(), "nope.txt"),
		CorpusOptions{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadCorpus_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.go"), "b\n")
	writeFile(t, filepath.Join(dir, "a.go"), "a\n")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "c\n")
	writeFile(t, filepath.Join(dir, "readme.md"), "skip\n")

	corpus, err := ReadCorpus(context.Background(),
		filepath.Join(dir, "**", "*.go"), CorpusOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", corpus)

	_, err = ReadCorpus(context.Background(), filepath.Join(dir, "*.rs"),
		CorpusOptions{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrNoMatches)
}

func TestReadCorpus_InvalidUTF8(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.txt"),
		"ok\xff\xfe")
	_, err := ReadCorpus(context.Background(), path,
		CorpusOptions{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Contains(t, err.Error(), "offset 2")
}

func TestReadCorpus_Sanitize(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "crlf.txt"),
		"\uFEFFif x {  \r\n\treturn\r\n}\r\n")
	corpus, err := ReadCorpus(context.Background(), path,
		CorpusOptions{Sanitize: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, "if x {\n\treturn\n}\n", corpus)
}

func TestReadCorpus_S3(t *testing.T) {
	mockSvc := &S3MockClient{GetObjectOutputs: map[string]string{
		"corpora/codebase.txt": "fn main() {}\n",
	}}
	corpus, err := ReadCorpus(context.Background(),
		"s3://test-bucket/corpora/codebase.txt",
		CorpusOptions{S3: mockSvc, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}\n", corpus)
	assert.Equal(t, []string{"test-bucket/corpora/codebase.txt"},
		mockSvc.Requests)

	mockSvc.GetObjectError = errors.New("simulated error")
	_, err = ReadCorpus(context.Background(),
		"s3://test-bucket/corpora/codebase.txt",
		CorpusOptions{S3: mockSvc, Logger: zerolog.Nop()})
	assert.Error(t, err)

	_, err = ReadCorpus(context.Background(), "s3://test-bucket",
		CorpusOptions{S3: mockSvc, Logger: zerolog.Nop()})
	assert.Error(t, err)
}
