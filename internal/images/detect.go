package images

import (
	"github.com/gabriel-vasile/mimetype"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Format is the detected kind of an image source.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatSVG     Format = "svg"
	FormatUnknown Format = "unknown"
)

// Raster reports whether pass 1 converts the format.
func (f Format) Raster() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWebP:
		return true
	default:
		return false
	}
}

// Detect sniffs the format of the file at path.
func Detect(path string) (Format, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return FormatUnknown, ferrors.WrapError(err, ferrors.CategorySource, "failed to read image").
			WithContext("path", path).Build()
	}
	switch {
	case mt.Is("image/jpeg"):
		return FormatJPEG, nil
	case mt.Is("image/png"):
		return FormatPNG, nil
	case mt.Is("image/gif"):
		return FormatGIF, nil
	case mt.Is("image/webp"):
		return FormatWebP, nil
	case mt.Is("image/svg+xml"):
		return FormatSVG, nil
	default:
		return FormatUnknown, nil
	}
}
