package filestore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

func TestSaveAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ref, err := l.Save(context.Background(), "Receipt.PNG", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(ref) != ".png" {
		t.Fatalf("expected lower-case extension kept, got %q", ref)
	}
	p, _ := l.Path(ref)
	got, err := os.ReadFile(p)
	if err != nil || !bytes.Equal(got, []byte("png-bytes")) {
		t.Fatalf("expected stored bytes, got %q, %v", got, err)
	}

	if err := l.Delete(context.Background(), ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := l.Delete(context.Background(), ref); err != nil {
		t.Fatalf("expected second delete to be a no-op, got %v", err)
	}
}

func TestSaveRejects(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"executable", "run.sh", []byte("x")},
		{"empty", "a.png", nil},
		{"too large", "a.png", make([]byte, MaxSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Save(context.Background(), tt.file, tt.data); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRejectsTraversal(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	if err := l.Delete(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := l.Path("a/b.png"); err == nil {
		t.Fatalf("expected nested path to be rejected")
	}
}
