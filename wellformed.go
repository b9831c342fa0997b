package xmlvalidator

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/agentflare-ai/go-xmlvalidator/internal/charset"
	"github.com/spf13/afero"
)

var (
	errMultipleRoots = errors.New("There are multiple root elements.")
	errRootLevelData = errors.New("Data at the root level is invalid.")
)

// IsWellFormed checks the file at path with a strict token pass and then
// loads it into a DOM tree. Document type declarations are skipped and
// never expanded; only the predefined entities are recognised and nothing
// outside the file is read.
func IsWellFormed(fs afero.Fs, path string) Outcome {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return failure(err.Error())
	}
	if err := checkTokens(data, true); err != nil {
		return failure(err.Error())
	}
	if _, err := decodeDocument(bytes.NewReader(data)); err != nil {
		return failure(err.Error())
	}
	return success()
}

// checkTokens walks every token of data and applies the document-level
// rules: exactly one root element and no text outside it. A lenient pass
// accepts unknown entities and unclosed HTML-style tags.
func checkTokens(data []byte, strict bool) error {
	data = bytes.TrimPrefix(data, charset.BOM)
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = strict
	d.CharsetReader = charset.NewReader

	depth := 0
	rootSeen := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && rootSeen {
				return errMultipleRoots
			}
			rootSeen = true
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(t)) != "" {
				return errRootLevelData
			}
		case xml.Directive:
			// DOCTYPE and its internal subset are ignored.
		}
	}
	if !rootSeen {
		return errNoRoot
	}
	return nil
}
