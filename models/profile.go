package models

import (
	"github.com/shruggr/workshop/sdk"
)

// AvatarSize is the edge length in pixels of a medium avatar
const AvatarSize = 64

// Image is an encoded image ready for display
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Base64 string `json:"base64"` // PNG, standard base64
	Hash   string `json:"hash"`   // hex BLAKE3 multihash of the raw pixels
}

// UserProfile is a snapshot of the signed-in user
type UserProfile struct {
	SteamID   sdk.SteamID `json:"-"`
	SteamID64 string      `json:"steamid64"`
	Name      string      `json:"name"`
	Avatar    *Image      `json:"avatar"`
}
