package datasplit

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// makePNG returns a small solid-colour PNG.
func makePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// colorFor returns a distinct opaque colour per index.
func colorFor(i int) color.Color {
	return color.RGBA{R: uint8(i * 37), G: uint8(255 - i*23), B: uint8(i * 11), A: 255}
}

// writeDataset creates root/<class>/img_NN.jpg files with distinct contents.
func writeDataset(t *testing.T, root string, classes map[string]int) {
	t.Helper()
	for class, n := range classes {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for i := range n {
			name := fmt.Sprintf("img_%02d.jpg", i)
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(class+"/"+name), 0o644))
		}
	}
}

// newTestSplitter builds a Splitter over a fresh raw dataset.
func newTestSplitter(t *testing.T, classes map[string]int, mutate func(*Config)) (*Splitter, Config) {
	t.Helper()
	base := t.TempDir()
	raw := filepath.Join(base, "raw")
	writeDataset(t, raw, classes)

	cfg := Config{
		RawRoot:    raw,
		OutputRoot: filepath.Join(base, "splits"),
		Seed:       DefaultSeed,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s, s.Config()
}

// listTree returns the sorted relative paths of every regular file under root.
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}
