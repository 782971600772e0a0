package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// CodeLen is the length of every normalized code.
const CodeLen = 3

var ErrConfigLoad = errors.New("mapping config could not be loaded")

// LoadError describes why a mapping document was rejected.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load mapping %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrConfigLoad }

type Entry struct {
	Code        string `json:"-" yaml:"-"`
	File        string `json:"file" yaml:"file"`
	Description string `json:"description" yaml:"description"`
}

type Document struct {
	Mappings map[string]Entry `json:"mappings" yaml:"mappings"`
}

// Store holds the code table. It is written by Load and read by
// lookups on the control loop and by HTTP handlers.
type Store struct {
	path string
	log  zerolog.Logger

	sf singleflight.Group

	mu      sync.RWMutex
	entries map[string]Entry
	ready   bool
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log,
	}
}

func (s *Store) Path() string { return s.path }

// Dir is the directory relative clip paths are resolved against.
func (s *Store) Dir() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return filepath.Dir(s.path)
	}
	return filepath.Dir(abs)
}

// Load reads the document and replaces the table. On failure the store is
// left empty and not ready. Concurrent calls share one read.
func (s *Store) Load(ctx context.Context) error {
	_, err, _ := s.sf.Do("load", func() (any, error) {
		entries, err := s.read(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.entries = nil
			s.ready = false
			return nil, err
		}
		s.entries = entries
		s.ready = true
		return nil, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("mapping load failed")
		return err
	}
	s.log.Info().Str("path", s.path).Int("codes", s.Len()).Msg("mapping loaded")
	return nil
}

func (s *Store) read(ctx context.Context) (map[string]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Path: s.path, Err: err}
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &LoadError{Path: s.path, Err: err}
	}
	doc, err := Parse(b, filepath.Ext(s.path))
	if err != nil {
		return nil, &LoadError{Path: s.path, Err: err}
	}
	return doc.Mappings, nil
}

// Parse decodes and validates a mapping document. ext selects the decoder:
// ".json" (the default) or ".yaml"/".yml".
func Parse(b []byte, ext string) (Document, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return Document{}, err
		}
	default:
		if err := json.Unmarshal(b, &doc); err != nil {
			return Document{}, err
		}
	}
	if doc.Mappings == nil {
		return Document{}, errors.New("document has no mappings object")
	}
	for code, e := range doc.Mappings {
		if !isCode(code) {
			return Document{}, fmt.Errorf("code %q is not %d digits", code, CodeLen)
		}
		if strings.TrimSpace(e.File) == "" {
			return Document{}, fmt.Errorf("code %s has no file", code)
		}
		e.Code = code
		doc.Mappings[code] = e
	}
	return doc, nil
}

func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup normalizes raw before matching. Unknown codes and an unloaded
// store both report false.
func (s *Store) Lookup(raw string) (Entry, bool) {
	code := Normalize(raw)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[code]
	return e, ok
}

// Codes returns the known codes in ascending order.
func (s *Store) Codes() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for c := range s.entries {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Digits keeps only the ASCII digits of raw.
func Digits(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Normalize maps raw input to a code: digits only, first three, zero padded.
func Normalize(raw string) string {
	d := Digits(raw)
	if len(d) > CodeLen {
		d = d[:CodeLen]
	}
	return strings.Repeat("0", CodeLen-len(d)) + d
}

func isCode(s string) bool {
	return len(s) == CodeLen && Digits(s) == s
}
