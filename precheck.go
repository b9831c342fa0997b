package xmlvalidator

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/agentflare-ai/go-xmlvalidator/internal/charset"
	"github.com/spf13/afero"
)

var errNoRoot = errors.New("Root element is missing.")

// IsXML parses the file at path into a DOM document and discards it. Any
// error while opening or parsing is a failure.
func IsXML(fs afero.Fs, path string) Outcome {
	f, err := fs.Open(path)
	if err != nil {
		return failure(err.Error())
	}
	defer f.Close()

	if _, err := decodeDocument(f); err != nil {
		return failure(err.Error())
	}
	return success()
}

// decodeDocument transcodes r to UTF-8, applies the document-level root
// rules and runs the DOM decoder, turning a panic inside it into an error.
// A document without a root element is an error.
func decodeDocument(r io.Reader) (doc xmldom.Document, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if data, err = charset.ToUTF8(data); err != nil {
		return nil, err
	}
	if err := checkTokens(data, false); err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("%v", rec)
		}
	}()
	doc, err = xmldom.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.DocumentElement() == nil {
		return nil, errNoRoot
	}
	return doc, nil
}
