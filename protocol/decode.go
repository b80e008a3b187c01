package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names a byte-to-text decoding policy for response chunks. Every
// policy is single-byte and total: any input decodes without error.
type Encoding string

const (
	// EncodingASCII keeps bytes below 0x80 and replaces every other byte with '?'.
	EncodingASCII Encoding = "ascii"
	// EncodingLatin1 maps each byte to the code point with the same value (ISO-8859-1).
	EncodingLatin1 Encoding = "latin1"
	// EncodingWindows1252 decodes with code page 1252.
	EncodingWindows1252 Encoding = "windows-1252"
)

// Encodings lists the accepted policy names.
var Encodings = []Encoding{EncodingASCII, EncodingLatin1, EncodingWindows1252}

// Decoder turns a received chunk into text.
type Decoder interface {
	Decode(chunk []byte) string
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(chunk []byte) string

func (f DecoderFunc) Decode(chunk []byte) string {
	return f(chunk)
}

// NewDecoder returns the Decoder for the named policy.
func NewDecoder(enc Encoding) (Decoder, error) {
	switch enc {
	case EncodingASCII:
		return DecoderFunc(decodeASCII), nil
	case EncodingLatin1:
		return charmapDecoder{charmap.ISO8859_1}, nil
	case EncodingWindows1252:
		return charmapDecoder{charmap.Windows1252}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// ParseEncoding normalizes a user supplied policy name.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ascii", "us-ascii":
		return EncodingASCII, nil
	case "latin1", "latin-1", "iso-8859-1":
		return EncodingLatin1, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("unknown encoding %q: must be one of %v", name, Encodings)
	}
}

func decodeASCII(chunk []byte) string {
	var sb strings.Builder
	sb.Grow(len(chunk))
	for _, b := range chunk {
		if b < 0x80 {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

type charmapDecoder struct {
	cm *charmap.Charmap
}

// Decode maps byte by byte; DecodeByte is total over all 256 values.
func (d charmapDecoder) Decode(chunk []byte) string {
	var sb strings.Builder
	sb.Grow(len(chunk))
	for _, b := range chunk {
		sb.WriteRune(d.cm.DecodeByte(b))
	}
	return sb.String()
}
