package loaders

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes an image file into tightly packed RGBA8 pixels.
func LoadImage(path string) (ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageData{}, err
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return ImageData{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func DecodeImage(r io.Reader) (ImageData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return ImageData{}, err
	}
	return ToRGBA(src), nil
}

// ToRGBA converts any image to RGBA8 with the origin at the top left.
func ToRGBA(src image.Image) ImageData {
	bounds := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	}
	return ImageData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}
