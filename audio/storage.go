package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-call temporary directory for audio artifacts. Release
// removes it and everything inside; it is safe to call more than once.
type Scratch struct {
	dir string
}

// NewScratch creates a fresh temporary directory named after prefix.
func NewScratch(prefix string) (*Scratch, error) {
	dir, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// File returns a unique path inside the scratch directory.
// Format: {dir}/{kind}_{uuid}.wav
func (s *Scratch) File(kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.wav", kind, uuid.NewString()))
}

// Release removes the scratch directory.
func (s *Scratch) Release() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
