package source

import (
	"path/filepath"

	mlio "github.com/TimelordUK/logdex/internal/io"
)

// FileSource provides bytes from a single static file
type FileSource struct {
	content  mlio.Content
	path     string
	identity string
}

// NewFileSource opens a file, decompressing it when needed
func NewFileSource(path string) (*FileSource, error) {
	content, err := mlio.Open(path)
	if err != nil {
		return nil, err
	}

	return &FileSource{
		content:  content,
		path:     path,
		identity: FileIdentity(path),
	}, nil
}

// NewBytesSource wraps an in-memory buffer as a static source
func NewBytesSource(name string, data []byte) *FileSource {
	return &FileSource{
		content:  mlio.NewMemory(data),
		path:     name,
		identity: NamedIdentity(name),
	}
}

// ReadAt reads len(p) bytes at offset
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.content.ReadAt(p, off)
}

// Identity returns the stable source key
func (s *FileSource) Identity() string {
	return s.identity
}

// Name returns the file basename
func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

// Path returns the file path
func (s *FileSource) Path() string {
	return s.path
}

// Kind is always KindStatic
func (s *FileSource) Kind() Kind {
	return KindStatic
}

// Size returns the content size
func (s *FileSource) Size() int64 {
	return s.content.Size()
}

// Close closes the file source
func (s *FileSource) Close() error {
	return s.content.Close()
}
