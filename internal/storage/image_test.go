package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngHeader = "\x89PNG\r\n\x1a\n"

func TestSniffImageReplaysContent(t *testing.T) {
	body := pngHeader + strings.Repeat("x", 2048)

	r, contentType, err := SniffImage(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestSniffImageDetectsFormats(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "\xff\xd8\xff\xe0rest",
		"image/gif":  "GIF89a....",
		"image/webp": "RIFF\x00\x00\x00\x00WEBPVP8 ",
	}
	for want, body := range cases {
		_, got, err := SniffImage(strings.NewReader(body))
		require.NoError(t, err, want)
		assert.Equal(t, want, got)
	}
}

func TestSniffImageRejectsNonImages(t *testing.T) {
	for _, body := range []string{
		"<html><script>alert(1)</script></html>",
		"<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>",
		"%PDF-1.7",
		"",
	} {
		_, _, err := SniffImage(strings.NewReader(body))
		assert.ErrorIs(t, err, ErrUnsupportedImage, body)
	}
}

func TestExtensionFromSniffedType(t *testing.T) {
	ext, err := extension("image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	_, err = extension("text/html")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
