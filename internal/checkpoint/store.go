package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"racefeed/internal/fileutil"
	"racefeed/internal/logging"
	"racefeed/internal/preflight"
	"racefeed/internal/standardform"
	"racefeed/internal/textutil"
)

// Key addresses one platform event, or one runner within it.
type Key struct {
	Platform string
	Series   string
	Event    string
	Runner   string
}

// ForRunner returns a copy of k scoped to one runner's detail pages. The
// runner scope lives under the event directory, so Clear of the event key
// removes it too.
func (k Key) ForRunner(runner string) Key {
	k.Runner = runner
	return k
}

func (k Key) dir(root string) string {
	parts := []string{
		root,
		textutil.KeyToken(k.Platform),
		textutil.KeyToken(k.Series),
		textutil.KeyToken(k.Event),
	}
	if k.Runner != "" {
		parts = append(parts, "runners", textutil.KeyToken(k.Runner))
	}
	return filepath.Join(parts...)
}

// Request identifies a remote call for the raw namespace.
type Request struct {
	Method string
	URL    string
	Params url.Values
	Body   string
}

// Hash returns the content address of the request.
func (r Request) Hash() string {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = "GET"
	}
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.URL))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.Params.Encode()))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// TransientDetector reports whether a response body is a transient platform
// error that must not be cached.
type TransientDetector func(body []byte) bool

// Store is the filesystem checkpoint store.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{root: dir, logger: logging.NewComponentLogger(logger, "checkpoint")}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

func (s *Store) rawPath(key Key, req Request) string {
	return filepath.Join(key.dir(s.root), "raw", req.Hash()+".body")
}

func (s *Store) formPath(key Key) string {
	return filepath.Join(key.dir(s.root), "form.json")
}

// LoadRaw returns a cached response body.
func (s *Store) LoadRaw(key Key, req Request) ([]byte, bool, error) {
	data, err := os.ReadFile(s.rawPath(key, req))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read raw checkpoint: %w", err)
	}
	return data, true, nil
}

// StoreRaw caches a response body. Bodies the detector flags as transient are
// skipped, as are requests already cached. It reports whether a file was written.
func (s *Store) StoreRaw(key Key, req Request, body []byte, transient TransientDetector) (bool, error) {
	if transient != nil && transient(body) {
		s.logger.Debug("transient response not cached", logging.String("url", req.URL))
		return false, nil
	}
	path := s.rawPath(key, req)
	if fileutil.Exists(path) {
		return false, nil
	}
	if err := fileutil.WriteAtomic(path, body, 0o644); err != nil {
		return false, fmt.Errorf("write raw checkpoint: %w", err)
	}
	return true, nil
}

// LoadForm reads the saved standard form for key.
func (s *Store) LoadForm(key Key) (*standardform.Form, bool, error) {
	data, err := os.ReadFile(s.formPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read form checkpoint: %w", err)
	}
	form, err := standardform.Parse(data)
	if err != nil {
		return nil, false, err
	}
	return form, true, nil
}

// SaveForm overwrites the saved standard form for key.
func (s *Store) SaveForm(key Key, form *standardform.Form) error {
	data, err := form.Encode()
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.formPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write form checkpoint: %w", err)
	}
	stats := form.Stats()
	s.logger.Debug("standard form saved",
		logging.Platform(key.Platform),
		logging.String("event", key.Event),
		logging.Int("races", stats.Races),
		logging.Int("results", stats.Results),
		logging.Int("detailed", stats.DetailedResult))
	return nil
}

// Clear removes everything stored for key, forcing a full re-fetch.
func (s *Store) Clear(key Key) error {
	if err := os.RemoveAll(key.dir(s.root)); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// HealthCheck verifies that the checkpoint directory is usable.
func (s *Store) HealthCheck() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	result := preflight.CheckDirectoryAccess("Checkpoint directory", s.root)
	if !result.Passed {
		return errors.New(result.Detail)
	}
	return nil
}
