// Package source acquires and decodes module source: it reads a file,
// detects the declared or implied encoding and hands back UTF-8 text.
package source

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	errs "semtree/internal/core/errors"
)

var codingCookie = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-_.a-zA-Z0-9]+)`)

// Open reads path and returns its decoded text plus the encoding name.
// Unreadable files yield an IOFailure; an unknown declared encoding or
// undecodable bytes yield an EncodingFailure.
func Open(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", errs.Wrap(err, errs.KindIOFailure, "unable to load file").WithPath(path)
	}
	text, enc, err := Decode(raw)
	if err != nil {
		return "", "", errs.Wrap(err, errs.KindEncodingFailure, "wrong or unknown encoding").WithPath(path)
	}
	return text, enc, nil
}

// Decode detects the encoding of raw source bytes (byte-order mark
// first, then a coding cookie on one of the first two lines, utf-8
// otherwise) and decodes them.
func Decode(raw []byte) (string, string, error) {
	if bytes.HasPrefix(raw, []byte{0xef, 0xbb, 0xbf}) {
		text, err := decodeAs(raw[3:], "utf-8")
		return text, "utf-8-sig", err
	}
	if bytes.HasPrefix(raw, []byte{0xff, 0xfe}) || bytes.HasPrefix(raw, []byte{0xfe, 0xff}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(raw)
		if err != nil {
			return "", "", fmt.Errorf("utf-16 decode: %w", err)
		}
		return string(out), "utf-16", nil
	}

	enc := detectCookie(raw)
	if enc == "" {
		enc = "utf-8"
	}
	text, err := decodeAs(raw, enc)
	return text, enc, err
}

func detectCookie(raw []byte) string {
	lines := bytes.SplitN(raw, []byte("\n"), 3)
	for i := 0; i < len(lines) && i < 2; i++ {
		if m := codingCookie.FindSubmatch(lines[i]); m != nil {
			return string(m[1])
		}
	}
	return ""
}

func decodeAs(raw []byte, name string) (string, error) {
	canonical := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	if canonical == "utf-8" || canonical == "utf8" {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("bytes are not valid utf-8")
		}
		return string(raw), nil
	}
	enc, err := htmlindex.Get(canonical)
	if err != nil {
		// Python spells several codecs with separators the WHATWG
		// index does not know (latin-1, iso-8859_1).
		enc, err = htmlindex.Get(strings.ReplaceAll(canonical, "-", ""))
	}
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q", name)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode as %q: %w", name, err)
	}
	return string(out), nil
}
