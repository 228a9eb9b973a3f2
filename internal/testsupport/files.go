package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// CopyDir copies the regular files directly under src into dst.
func CopyDir(t testing.TB, src, dst string) {
	t.Helper()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("read dir %s: %v", src, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		copyFile(t, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()))
	}
}

// ReplaceDir deletes dst and recreates it from the files under src.
func ReplaceDir(t testing.TB, src, dst string) {
	t.Helper()

	if err := os.RemoveAll(dst); err != nil {
		t.Fatalf("remove %s: %v", dst, err)
	}
	CopyDir(t, src, dst)
}

func copyFile(t testing.TB, src, dst string) {
	t.Helper()

	in, err := os.Open(src)
	if err != nil {
		t.Fatalf("open %s: %v", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("create %s: %v", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		t.Fatalf("copy %s: %v", src, err)
	}
}
