package datasplit

import (
	"bufio"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// imageInfo is the decoded header of an image file.
type imageInfo struct {
	Format string
	Width  int
	Height int
}

// probeImage decodes only the image header at path.
func probeImage(path string) (imageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return imageInfo{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return imageInfo{}, err
	}
	return imageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// decodeImage fully decodes the image at path.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	return img, err
}
