package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// jpegMagic starts every fake frame so content sniffers treat it as an image.
var jpegMagic = []byte{0xff, 0xd8, 0xff, 0xe0}

// WriteFile creates path (and its parent directories) holding size bytes of
// filler. Sizes below one write a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size < 1 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'f'}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFrames writes count distinct fake frames named like ffmpeg output
// (frame_000001.jpg, ...) into dir and returns their paths in order.
func WriteFrames(t testing.TB, dir string, count int) []string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	paths := make([]string, count)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", i+1))
		body := append(append([]byte{}, jpegMagic...), []byte(paths[i])...)
		if err := os.WriteFile(paths[i], body, 0o644); err != nil {
			t.Fatalf("write frame %s: %v", paths[i], err)
		}
	}
	return paths
}
