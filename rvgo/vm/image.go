package vm

import (
	"fmt"
	"io"
	"os"
)

// LoadImage creates a fresh VM state with the raw image copied to address 0.
// Images larger than memory are truncated; the rest of memory stays zero.
func LoadImage(r io.Reader, cfg Config) (*VMState, int, error) {
	if err := cfg.Check(); err != nil {
		return nil, 0, fmt.Errorf("invalid config: %w", err)
	}
	state := NewVMState(cfg)
	n, err := state.Memory.SetRange(0, r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read image: %w", err)
	}
	return state, n, nil
}

func LoadImageFile(path string, cfg Config) (*VMState, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open image %q: %w", path, err)
	}
	defer f.Close()
	return LoadImage(f, cfg)
}
