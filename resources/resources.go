package resources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func newRequest(ctx context.Context, method string, uri string, rsrc string,
	auth string) (*http.Request, error) {
	req, reqErr := http.NewRequestWithContext(ctx, method,
		strings.TrimSuffix(uri, "/")+"/"+rsrc, nil)
	if reqErr != nil {
		return nil, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	return req, nil
}

// FetchHTTP
// Fetch a resource from a remote HTTP server with bearer token auth.
func FetchHTTP(ctx context.Context, client *http.Client, uri string,
	rsrc string, auth string) (io.ReadCloser, error) {
	req, reqErr := newRequest(ctx, http.MethodGet, uri, rsrc, auth)
	if reqErr != nil {
		return nil, reqErr
	}
	resp, remoteErr := client.Do(req)
	if remoteErr != nil {
		return nil, remoteErr
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP status code %d", ErrNotFound,
			resp.StatusCode)
	}
	return resp.Body, nil
}

// SizeHTTP
// Get the size of a resource from a remote HTTP server with bearer token auth.
func SizeHTTP(ctx context.Context, client *http.Client, uri string,
	rsrc string, auth string) (uint64, error) {
	req, reqErr := newRequest(ctx, http.MethodHead, uri, rsrc, auth)
	if reqErr != nil {
		return 0, reqErr
	}
	resp, remoteErr := client.Do(req)
	if remoteErr != nil {
		return 0, remoteErr
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP status code %d", ErrNotFound,
			resp.StatusCode)
	}
	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	return size, nil
}
