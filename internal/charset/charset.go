// Package charset converts XML documents in legacy encodings to UTF-8 before
// they reach the DOM decoder.
package charset

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// BOM is the UTF-8 byte order mark.
var BOM = []byte("\xef\xbb\xbf")

// encodingDecl matches the encoding pseudo-attribute of a leading XML
// declaration. Group 3 is the label.
var encodingDecl = regexp.MustCompile(`^(<\?xml\s[^>]*?encoding\s*=\s*)(["'])([A-Za-z][A-Za-z0-9._-]*)(["'])`)

// NewReader decodes input from the encoding named by label. It has the
// signature of encoding/xml's Decoder.CharsetReader.
func NewReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// ToUTF8 transcodes a document whose declaration names a non-UTF-8 encoding
// and rewrites the declaration to say UTF-8. UTF-8 input is returned without
// its byte order mark.
func ToUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, BOM)
	m := encodingDecl.FindSubmatch(data)
	if m == nil {
		return data, nil
	}
	label := string(m[3])
	if isUTF8(label) {
		return data, nil
	}
	r, err := NewReader(label, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return encodingDecl.ReplaceAll(decoded, []byte("${1}${2}UTF-8${4}")), nil
}

func isUTF8(label string) bool {
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
