// Package filestore keeps payment-proof uploads on local disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// MaxSize bounds a single stored file.
const MaxSize = 5 << 20

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".pdf": true}

// Local stores files under Dir with generated names. The returned reference is the file name
// relative to Dir.
type Local struct {
	Dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir}, nil
}

func (l *Local) Save(_ context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", apperr.Validation("unsupported payment proof type %q", ext)
	}
	if len(data) == 0 || len(data) > MaxSize {
		return "", apperr.Validation("payment proof must be between 1 and %d bytes", MaxSize)
	}
	ref := "proof-" + uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(l.Dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	return ref, nil
}

// Delete removes ref. Deleting a file that is already gone is not an error.
func (l *Local) Delete(_ context.Context, ref string) error {
	path, err := l.Path(ref)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Path resolves ref to a file on disk.
func (l *Local) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("invalid file reference %q", ref)
	}
	return filepath.Join(l.Dir, ref), nil
}
