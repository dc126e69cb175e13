package toolchain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-invocation working directory for C2: the place a
// compile stage writes its output binary (and, for C5, intermediate
// representation) before the run stage executes it. It is removed on
// every exit path, including timeout and cancellation, per §4.2's
// caching/scratch-directory contract.
type Scratch struct {
	Dir string
}

// NewScratch creates a fresh scratch directory under root, named with a
// random UUID so concurrent diagnosis jobs never collide (§5: scratch
// directories are per-invocation and never shared).
func NewScratch(root string) (*Scratch, error) {
	dir := filepath.Join(root, "trace2pass-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// BinaryPath returns the path the compile stage should emit its
// executable to within this scratch directory.
func (s *Scratch) BinaryPath() string {
	return filepath.Join(s.Dir, "out")
}

// IRPath returns the path intermediate representation is written to for
// C5's pass-specific compilation pipeline.
func (s *Scratch) IRPath() string {
	return filepath.Join(s.Dir, "out.ll")
}

// Close removes the scratch directory and everything under it. Safe to
// call multiple times and safe to call after the directory has already
// been partially consumed by a killed subprocess.
func (s *Scratch) Close() error {
	if s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}
