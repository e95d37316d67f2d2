// Package profile encodes the signed-in user's persona data for display.
package profile

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/multihash"
)

// EncodeAvatar turns raw RGBA pixels of a size x size avatar into a PNG image
func EncodeAvatar(rgba []byte, size int) (*models.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid avatar size %d", size)
	}
	if len(rgba) != size*size*4 {
		return nil, fmt.Errorf("avatar buffer is %d bytes, expected %d", len(rgba), size*size*4)
	}

	img := &image.RGBA{
		Pix:    rgba,
		Stride: size * 4,
		Rect:   image.Rect(0, 0, size, size),
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode avatar: %w", err)
	}

	hash, err := multihash.NewContentHash(rgba)
	if err != nil {
		return nil, err
	}

	return &models.Image{
		Width:  size,
		Height: size,
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Hash:   hash.Hex(),
	}, nil
}
