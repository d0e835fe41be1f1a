// Package images runs the two image passes into the release image directory.
//
// Pass 1 (convert) re-encodes every raster image as WebP next to its relative path
// with a .webp extension. Pass 2 (optimize) re-encodes each GIF, JPEG and PNG in its
// own format, minifies SVG and copies anything else unchanged. WebP sources belong
// to pass 1 only, so the two passes never write the same file.
//
// Formats are detected from content, not from the file extension.
package images
