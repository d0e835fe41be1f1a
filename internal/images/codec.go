package images

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/webp"
)

func decode(format Format, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatWebP:
		return webp.Decode(r)
	case FormatGIF:
		return gif.Decode(r)
	case FormatJPEG:
		return jpeg.Decode(r)
	default:
		return png.Decode(r)
	}
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optimizeJPEG(data []byte, quality int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pngCompression maps an optipng style level (0-7) onto the encoder's levels.
func pngCompression(level int) png.CompressionLevel {
	switch {
	case level <= 2:
		return png.BestSpeed
	case level <= 4:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// optimizePNG re-encodes losslessly and keeps the original when that is not smaller.
func optimizePNG(data []byte, level int) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: pngCompression(level)}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return smaller(buf.Bytes(), data), nil
}

// optimizeGIF re-encodes every frame with its original palette.
func optimizeGIF(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return smaller(buf.Bytes(), data), nil
}

func smaller(candidate, original []byte) []byte {
	if len(candidate) < len(original) {
		return candidate
	}
	return original
}
