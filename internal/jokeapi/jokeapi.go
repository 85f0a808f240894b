package jokeapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"papa-puns/internal/config"
	"papa-puns/internal/models"
	"papa-puns/pkg/logger"
)

const DefaultUserAgent = "Papa Puns (https://github.com/vdumitraskovic/papa-puns)"

const maxBodySize = 1 << 20

var ErrNoBaseURL = errors.New("joke service base url is not configured")

// TransportError covers failed requests and non-2xx responses.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("joke service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("joke service request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed joke service response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// New resolves "/" against the configured base URL once, up front.
func New(cfg config.ServiceConfig, opts ...Option) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid joke service url: %w", err)
	}

	f := &Fetcher{
		endpoint:  base.ResolveReference(&url.URL{Path: "/"}).String(),
		userAgent: DefaultUserAgent,
		client:    &http.Client{},
	}
	WithUserAgent(cfg.UserAgent)(f)

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Fetcher) Endpoint() string {
	return f.endpoint
}

// Fetch makes exactly one request. Retrying is up to the caller.
func (f *Fetcher) Fetch(ctx context.Context) (models.Joke, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return models.Joke{}, &TransportError{Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn("Joke service request failed", logger.String("url", f.endpoint), logger.Err(err))
		return models.Joke{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Non-OK status from joke service", logger.Int("status", resp.StatusCode))
		return models.Joke{}, &TransportError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return models.Joke{}, &TransportError{Err: err}
	}

	joke, err := models.NewJoke(body)
	if err != nil {
		return models.Joke{}, &ParseError{Err: err}
	}

	logger.Debug("Fetched joke", logger.String("id", joke.ID()))
	return joke, nil
}
