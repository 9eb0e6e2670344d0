// Package extract fetches endpoint metadata from the external extractor: a
// file it already wrote, a command that prints it, or an HTTP service.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/oasassemble/internal/jsonv"
	"github.com/mark3labs/oasassemble/internal/spec"
)

// ErrorCode categorizes source errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError   ErrorCode = "InputError"
	NetworkError ErrorCode = "NetworkError"
	ProcessError ErrorCode = "ProcessError"
	ParseError   ErrorCode = "ParseError"
)

// SourceError is a structured error with the location that failed.
type SourceError struct {
	Code     ErrorCode
	Message  string
	Location string // file path, URL or command line
	Cause    error
}

func (e *SourceError) Error() string { return e.Message }
func (e *SourceError) Unwrap() error { return e.Cause }

// Settings configures source behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// Dir is the working directory for extractor commands.
	Dir string
	// Client overrides the HTTP client.
	Client *http.Client
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithDir(dir string) Option { return func(s *Settings) { s.Dir = dir } }
func WithHTTPClient(c *http.Client) Option { return func(s *Settings) { s.Client = c } }

func newSettings(opts []Option) Settings {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// Open returns a source for input, which may be a filesystem path or an
// http/https URL.
func Open(input string, opts ...Option) (spec.MetadataSource, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &SourceError{Code: InputError, Message: "extract: input is empty"}
	}
	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("extract: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		return NewHTTPSource(input, opts...), nil
	}
	return NewFileSource(input), nil
}

// FileSource reads a payload the extractor already wrote. JSON and YAML are
// accepted; the handler list is not used.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource { return &FileSource{Path: path} }

func (s *FileSource) Fetch(ctx context.Context, handlers []string) (*spec.Extraction, error) {
	_ = handlers
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: s.Path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SourceError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	ext := strings.ToLower(filepath.Ext(abs))
	if ext == ".yaml" || ext == ".yml" {
		v, err := jsonv.ParseYAML(raw)
		if err != nil {
			return nil, &SourceError{Code: ParseError, Message: fmt.Sprintf("parse %s: %v", abs, err), Location: abs, Cause: err}
		}
		if raw, err = v.MarshalJSON(); err != nil {
			return nil, err
		}
	}
	return decodePayload(raw, abs)
}

// CommandSource runs the extractor with the handler ids appended to Args and
// reads the payload from its standard output.
type CommandSource struct {
	Name     string
	Args     []string
	settings Settings
}

// NewCommandSource splits commandLine on whitespace into a program and its
// leading arguments.
func NewCommandSource(commandLine string, opts ...Option) (*CommandSource, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, &SourceError{Code: InputError, Message: "extract: extractor command is empty"}
	}
	return &CommandSource{Name: fields[0], Args: fields[1:], settings: newSettings(opts)}, nil
}

func (s *CommandSource) Fetch(ctx context.Context, handlers []string) (*spec.Extraction, error) {
	args := append(append([]string{}, s.Args...), handlers...)
	cmd := exec.CommandContext(ctx, s.Name, args...)
	cmd.Dir = s.settings.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	location := strings.Join(append([]string{s.Name}, s.Args...), " ")
	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("run %s: %v", location, err)
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg = fmt.Sprintf("%s\n%s", msg, tail)
		}
		return nil, &SourceError{Code: ProcessError, Message: msg, Location: location, Cause: err}
	}
	return decodePayload(stdout.Bytes(), location)
}

// HTTPSource POSTs {"handlers": [...]} to URL and reads the payload from the
// response body. Transient failures are retried with exponential backoff.
type HTTPSource struct {
	URL      string
	settings Settings
}

func NewHTTPSource(rawURL string, opts ...Option) *HTTPSource {
	return &HTTPSource{URL: rawURL, settings: newSettings(opts)}
}

func (s *HTTPSource) Fetch(ctx context.Context, handlers []string) (*spec.Extraction, error) {
	if handlers == nil {
		handlers = []string{}
	}
	reqBody, err := json.Marshal(map[string][]string{"handlers": handlers})
	if err != nil {
		return nil, err
	}
	raw, err := postWithRetry(ctx, s.URL, reqBody, s.settings)
	if err != nil {
		return nil, &SourceError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", s.URL, err), Location: s.URL, Cause: err}
	}
	return decodePayload(raw, s.URL)
}

func postWithRetry(ctx context.Context, rawURL string, body []byte, settings Settings) ([]byte, error) {
	client := settings.Client
	if client == nil {
		client = &http.Client{Timeout: settings.HTTPTimeout}
	}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return io.ReadAll(resp.Body)
		}
		if err != nil {
			lastErr = err
		} else {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
			} else {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func decodePayload(raw []byte, location string) (*spec.Extraction, error) {
	var ext spec.Extraction
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, &SourceError{Code: ParseError, Message: fmt.Sprintf("parse extractor output from %s: %v", location, err), Location: location, Cause: err}
	}
	if ext.Endpoints == nil {
		return nil, &SourceError{Code: ParseError, Message: fmt.Sprintf("extractor output from %s has no \"endpoints\" object", location), Location: location}
	}
	return &ext, nil
}
