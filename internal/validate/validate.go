// Package validate holds the input validation rules shared by the HTTP
// layer and the board mutation service.
package validate

import (
	"bytes"
	"regexp"
)

const (
	// MaxUnsignedInt is the exclusive upper bound for coordinates,
	// dimensions and identifiers coming from clients.
	MaxUnsignedInt = 4294967295

	MaxStringLength    = 64
	MaxParagraphLength = 1024
	MaxPasswordLength  = 2048
	MaxImageFileSize   = 512000
)

var (
	usernameRe    = regexp.MustCompile(`^[a-zA-Z0-9-_]{1,64}$`)
	boardNameRe   = regexp.MustCompile(`^[a-zA-Z0-9 .,!?'"()-]{1,64}$`)
	hexColorRe    = regexp.MustCompile(`^#(?:[A-Fa-f0-9]{3}){1,2}$`)
	displayNameRe = regexp.MustCompile(`^\S(?:.{0,62}\S)?$`)
)

// Username accepts 1-64 characters from the alphanumeric, dash and
// underscore set.
func Username(s string) bool {
	return usernameRe.MatchString(s)
}

// DisplayName accepts 1-64 characters without leading or trailing
// whitespace.
func DisplayName(s string) bool {
	return len(s) <= MaxStringLength && displayNameRe.MatchString(s)
}

// BoardName accepts 1-64 alphanumeric characters, spaces and basic
// punctuation.
func BoardName(s string) bool {
	return boardNameRe.MatchString(s)
}

// ColorHexCode accepts #rgb and #rrggbb color codes.
func ColorHexCode(s string) bool {
	return hexColorRe.MatchString(s)
}

// Password only bounds the length. Composition rules are a client
// concern.
func Password(s string) bool {
	return len(s) > 0 && len(s) <= MaxPasswordLength
}

// MessageText bounds chat messages to one paragraph.
func MessageText(s string) bool {
	return len(s) > 0 && len(s) <= MaxParagraphLength
}

// Coordinate reports whether v is a whole number inside the unsigned
// 32-bit range drawn on the canvas.
func Coordinate(v float64) bool {
	return v == float64(int64(v)) && v >= 0 && v < MaxUnsignedInt
}

// Radius accepts any non-negative radius below the canvas bound.
// Fractional radii are allowed and truncated to one decimal elsewhere.
func Radius(v float64) bool {
	return v >= 0 && v < MaxUnsignedInt
}

var imageSignatures = [][]byte{
	{0xff, 0xd8, 0xff, 0xe0}, // jpg
	{0xff, 0xd8, 0xff, 0xe1}, // jpg (exif)
	{0x89, 0x50, 0x4e, 0x47}, // png
	{0x47, 0x49, 0x46, 0x38}, // gif
}

// ImageFile checks the size bound and the magic bytes of an uploaded
// avatar. Extensions are not trusted.
func ImageFile(data []byte) bool {
	if len(data) == 0 || len(data) > MaxImageFileSize {
		return false
	}
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}
