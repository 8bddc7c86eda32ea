package bookmark

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bookmark: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("bookmark: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is the on-disk form, one file per source identity
type record struct {
	Identity string    `cbor:"1,keyasint"`
	Name     string    `cbor:"2,keyasint,omitempty"`
	Lines    []int     `cbor:"3,keyasint"`
	Saved    time.Time `cbor:"4,keyasint"`
}

// Store persists bookmark sets under a directory
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir; an empty dir uses DefaultDir
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// DefaultDir returns $XDG_STATE_HOME/logdex/bookmarks
func DefaultDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "logdex", "bookmarks")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "logdex", "bookmarks")
	}
	return filepath.Join(home, ".local", "state", "logdex", "bookmarks")
}

// Dir returns the storage directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(identity string) string {
	return filepath.Join(s.dir, identity+".cbor")
}

// Load returns the bookmarks saved for identity, empty when none were
func (s *Store) Load(identity string) (*Index, error) {
	data, err := os.ReadFile(s.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading bookmarks: %w", err)
	}

	var rec record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding bookmarks for %s: %w", identity, err)
	}
	if rec.Identity != identity {
		return nil, fmt.Errorf("bookmark file %s belongs to %s", s.path(identity), rec.Identity)
	}
	return New(rec.Lines...), nil
}

// Save writes the bookmarks for identity, replacing the file atomically.
// An empty set removes the file.
func (s *Store) Save(identity, name string, idx *Index) error {
	lines := idx.List()
	if len(lines) == 0 {
		return s.Delete(identity)
	}

	data, err := encMode.Marshal(record{
		Identity: identity,
		Name:     name,
		Lines:    lines,
		Saved:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding bookmarks: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating bookmark dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, identity+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating bookmark file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(identity)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing bookmark file: %w", err)
	}
	return nil
}

// Delete removes the bookmarks saved for identity
func (s *Store) Delete(identity string) error {
	err := os.Remove(s.path(identity))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing bookmarks: %w", err)
	}
	return nil
}
