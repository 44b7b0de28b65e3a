// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	// MaxMessageLength is the number of UTF-16 code units of message text
	// considered by Encode.
	MaxMessageLength = 32

	// PayloadWidth is the number of leading UTF-8 bytes packed into the
	// numeric payload.
	PayloadWidth = 4
)

// EncodedPayload is the fixed-width value handed to the encryption oracle.
type EncodedPayload struct {
	RawText      string
	NumericValue uint32
}

// Encode maps text onto a 32-bit payload.
//
// Text is first truncated to MaxMessageLength UTF-16 code units, then only the
// first PayloadWidth bytes of its UTF-8 form are packed little-endian (byte 0
// in bits 0-7). The transform is lossy: strings sharing a 4-byte prefix encode
// to the same value, and the 32 unit limit is far wider than the packed
// window. The narrowing is kept as-is and there is no decoder on the sending
// side.
func Encode(text string) EncodedPayload {
	raw := truncateUnits(text, MaxMessageLength)

	var buf [PayloadWidth]byte
	copy(buf[:], raw)
	return EncodedPayload{
		RawText:      raw,
		NumericValue: binary.LittleEndian.Uint32(buf[:]),
	}
}

// truncateUnits cuts s to at most n UTF-16 code units. A surrogate pair split
// by the cut decodes to U+FFFD.
func truncateUnits(s string, n int) string {
	if len(s) <= n {
		// UTF-16 length never exceeds UTF-8 length
		return s
	}
	units := utf16.Encode([]rune(s))
	if len(units) <= n {
		return s
	}
	return string(utf16.Decode(units[:n]))
}
