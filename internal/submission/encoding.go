package submission

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// ErrEncodingUndetermined reports source bytes that decode under none
// of the supported encodings.
var ErrEncodingUndetermined = errors.New("source encoding undetermined")

// DecodeSource converts source bytes to canonical UTF-8. Course
// machines produce UTF-8 (with or without BOM), UTF-16 with BOM, or
// Shift-JIS, tried in that order.
//
// The x/text decoders substitute U+FFFD for invalid sequences instead
// of failing, so a decode that yields any replacement rune counts as
// undetermined.
func DecodeSource(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		raw = raw[3:]
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(raw); err == nil && clean(out) {
			return string(out), nil
		}
	}

	dec := japanese.ShiftJIS.NewDecoder()
	if out, err := dec.Bytes(raw); err == nil && clean(out) {
		return string(out), nil
	}

	return "", ErrEncodingUndetermined
}

func clean(out []byte) bool {
	return utf8.Valid(out) && !strings.ContainsRune(string(out), utf8.RuneError)
}
