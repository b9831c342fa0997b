package xmlvalidator

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTokens(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  string
	}{
		{"simple", `<a><b>text</b></a>`, ""},
		{"declaration and comments", "<?xml version=\"1.0\"?>\n<!-- c --><a/>\n<?pi data?>\n", ""},
		{"byte order mark", "\xef\xbb\xbf<a/>", ""},
		{"doctype with internal subset", `<!DOCTYPE a [<!ELEMENT a (#PCDATA)>]><a>x</a>`, ""},
		{"latin1 declaration", "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a>caf\xe9</a>", ""},
		{"predefined entities", `<a>&lt;&amp;&#65;</a>`, ""},
		{"undefined entity", `<a>&custom;</a>`, "invalid character entity"},
		{"two roots", `<a/><b/>`, "There are multiple root elements."},
		{"text before root", `junk<a/>`, "Data at the root level is invalid."},
		{"empty", ``, "Root element is missing."},
		{"only a comment", `<!-- nothing -->`, "Root element is missing."},
		{"mismatched tags", `<a><b></a>`, "XML syntax error"},
		{"unknown encoding", `<?xml version="1.0" encoding="x-no-such"?><a/>`, "unsupported encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTokens([]byte(tt.doc), true)
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestCheckTokensLenient(t *testing.T) {
	assert.NoError(t, checkTokens([]byte(`<a>&custom;</a>`), false))
	assert.EqualError(t, checkTokens([]byte(`<a/><a/>`), false), "There are multiple root elements.")
	assert.EqualError(t, checkTokens([]byte("text<a/>"), false), "Data at the root level is invalid.")
	assert.EqualError(t, checkTokens([]byte("  "), false), "Root element is missing.")
}

func TestIsWellFormed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ok.xml", []byte(`<a><b/></a>`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/two.xml", []byte(`<a/><b/>`), 0o644))

	assert.Equal(t, Outcome{OK: true}, IsWellFormed(fs, "/ok.xml"))

	out := IsWellFormed(fs, "/two.xml")
	assert.False(t, out.OK)
	assert.Equal(t, "\nException:\nThere are multiple root elements.", out.Diagnostic)

	out = IsWellFormed(fs, "/missing.xml")
	assert.False(t, out.OK)
	assert.Contains(t, out.Diagnostic, "\nException:\n")
}

func TestIsXML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ok.xml", []byte(`<a attr="1">text</a>`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/text.xml", []byte("plain text"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/two.xml", []byte(`<a/><a/>`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/lead.xml", []byte(`x<a/>`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/latin.xml", []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a>caf\xe9</a>"), 0o644))

	assert.True(t, IsXML(fs, "/ok.xml").OK)

	out := IsXML(fs, "/text.xml")
	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Diagnostic)

	out = IsXML(fs, "/two.xml")
	assert.False(t, out.OK)
	assert.Equal(t, "\nException:\nThere are multiple root elements.", out.Diagnostic)

	out = IsXML(fs, "/lead.xml")
	assert.False(t, out.OK)
	assert.Equal(t, "\nException:\nData at the root level is invalid.", out.Diagnostic)

	out = IsXML(fs, "/latin.xml")
	assert.True(t, out.OK, out.Diagnostic)

	out = IsXML(fs, "/missing.xml")
	assert.False(t, out.OK)
	assert.Contains(t, out.Diagnostic, "\nException:\n")
}

func TestOutcomeFailAccumulates(t *testing.T) {
	out := success()
	out.fail("first")
	out.fail("")
	assert.False(t, out.OK)
	assert.Equal(t, "\nException:\nfirst\nException:\nUnknown error.", out.Diagnostic)
}
