package profile

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/multihash"
)

func testPixels(size int) []byte {
	pix := make([]byte, size*size*4)
	for i := range pix {
		if i%4 == 3 {
			pix[i] = 0xff // opaque, so PNG round trips exactly
			continue
		}
		pix[i] = byte(i * 7)
	}
	return pix
}

func TestEncodeAvatarRoundTrip(t *testing.T) {
	pix := testPixels(models.AvatarSize)

	img, err := EncodeAvatar(pix, models.AvatarSize)
	if err != nil {
		t.Fatalf("EncodeAvatar failed: %v", err)
	}

	if img.Width != 64 || img.Height != 64 {
		t.Errorf("Expected 64x64, got %dx%d", img.Width, img.Height)
	}

	data, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	rgba, ok := decoded.(*image.RGBA)
	if !ok {
		t.Fatalf("Expected RGBA image, got %T", decoded)
	}
	if !bytes.Equal(rgba.Pix, pix) {
		t.Error("Decoded pixels differ from input")
	}

	hash, err := multihash.ParseContentHash(img.Hash)
	if err != nil {
		t.Fatalf("Avatar hash did not parse: %v", err)
	}
	if err := hash.Verify(pix); err != nil {
		t.Errorf("Avatar hash should cover raw pixels: %v", err)
	}
}

func TestEncodeAvatarWrongLength(t *testing.T) {
	if _, err := EncodeAvatar(make([]byte, 10), models.AvatarSize); err == nil {
		t.Error("Expected error for short buffer")
	}
	if _, err := EncodeAvatar(nil, 0); err == nil {
		t.Error("Expected error for zero size")
	}
}
