package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrorKind classifies a manifest load failure.
type ErrorKind int

const (
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork ErrorKind = iota

	// KindDecode means the document could not be parsed.
	KindDecode

	// KindUnsupported means the document parsed but cannot be played.
	KindUnsupported
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// LoadError describes why a manifest could not be loaded.
type LoadError struct {
	Kind       ErrorKind
	URI        string
	StatusCode int // set for HTTP status failures
	Err        error
}

func (e *LoadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("manifest %s: %s: HTTP %d", e.URI, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("manifest %s: %s: %v", e.URI, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *LoadError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Loader fetches and parses a manifest.
type Loader interface {
	Load(ctx context.Context, uri string) (*Manifest, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, uri string) (*Manifest, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, uri string) (*Manifest, error) {
	return f(ctx, uri)
}

// MaxManifestBytes bounds how much of a manifest response is read.
const MaxManifestBytes = 8 << 20

// HTTPLoader loads manifests over HTTP(S).
type HTTPLoader struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration // 0 means no extra deadline
}

// NewHTTPLoader returns a loader with a dedicated client.
func NewHTTPLoader(timeout time.Duration, userAgent string) *HTTPLoader {
	return &HTTPLoader{
		Client:    &http.Client{},
		UserAgent: userAgent,
		Timeout:   timeout,
	}
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, uri string) (*Manifest, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &LoadError{Kind: KindNetwork, URI: uri, Err: err}
	}
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Kind: KindNetwork, URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{
			Kind:       KindNetwork,
			URI:        uri,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxManifestBytes))
	if err != nil {
		return nil, &LoadError{Kind: KindNetwork, URI: uri, Err: err}
	}
	return ParseMPD(data, uri)
}

// StaticLoader always returns the same manifest, ignoring the URI's content.
type StaticLoader struct {
	Manifest *Manifest
}

// Load implements Loader.
func (l StaticLoader) Load(ctx context.Context, uri string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Kind: KindNetwork, URI: uri, Err: err}
	}
	m := *l.Manifest
	m.URI = uri
	return &m, nil
}
