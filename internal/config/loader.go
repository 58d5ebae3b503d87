package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Error reports a team file that is missing or not well formed.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("config: load %q: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Loader parses team files and memoizes successful results per path for the
// lifetime of the Loader. Failed loads are not cached, so a corrected file is
// picked up on the next call.
type Loader struct {
	readFile func(string) ([]byte, error)
	validate *validator.Validate

	mu    sync.Mutex
	cache map[string]*Team
}

type LoaderOption func(*Loader)

// WithReadFile replaces the file reader, mainly for tests.
func WithReadFile(fn func(string) ([]byte, error)) LoaderOption {
	return func(l *Loader) {
		l.readFile = fn
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		readFile: os.ReadFile,
		validate: validator.New(),
		cache:    make(map[string]*Team),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the parsed team at path. The returned value is shared and must
// be treated as read-only.
func (l *Loader) Load(path string) (*Team, error) {
	key := filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.cache[key]; ok {
		return t, nil
	}

	raw, err := l.readFile(key)
	if err != nil {
		return nil, &Error{Path: key, Err: err}
	}
	t, err := l.parse(raw)
	if err != nil {
		return nil, &Error{Path: key, Err: err}
	}
	l.cache[key] = t
	return t, nil
}

// Invalidate drops the cached team for path so the next Load re-reads it.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, filepath.Clean(path))
}

func (l *Loader) parse(raw []byte) (*Team, error) {
	var t Team
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("decode: multiple JSON values")
		}
		return nil, fmt.Errorf("decode trailing data: %w", err)
	}
	if err := l.validate.Struct(&t); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if _, err := t.MaxRounds(); err != nil {
		return nil, err
	}
	return &t, nil
}
