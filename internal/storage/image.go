package storage

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// sniffLen is how many leading bytes http.DetectContentType looks at
const sniffLen = 512

// ErrUnsupportedImage is returned for uploads that are not PNG, JPEG, GIF or WebP
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImage detects the image type from the content itself, ignoring whatever
// the client declared. The returned reader replays the sniffed bytes.
func SniffImage(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if _, ok := imageExtensions[contentType]; !ok {
		return nil, "", ErrUnsupportedImage
	}
	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}

// extension maps a sniffed image type to the file extension it is stored under
func extension(contentType string) (string, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return ext, nil
}
