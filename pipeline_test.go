package xmlvalidator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	orderSchema = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="order">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="item" type="xs:string" maxOccurs="unbounded"/>
        <xs:element name="total" type="xs:decimal"/>
      </xs:sequence>
      <xs:attribute name="id" type="xs:string" use="required"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`

	validOrder = `<?xml version="1.0"?>
<order id="o-1">
  <item>pen</item>
  <item>ink</item>
  <total>3.50</total>
</order>`

	orderMissingTotal = `<order id="o-1"><item>pen</item></order>`
)

func newTestPipeline(t *testing.T, files map[string]string) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	out := &bytes.Buffer{}
	return &Pipeline{
		FS:          fs,
		Cwd:         "/work",
		Out:         out,
		ProgramName: "xmlvalidator",
		Version:     "1.0.0",
	}, out
}

func TestPipelineRun(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		args     []string
		code     int
		exact    string
		contains []string
	}{
		{
			name:  "valid document",
			files: map[string]string{"/work/order.xml": validOrder, "/work/order.xsd": orderSchema},
			args:  []string{"order.xml", "order.xsd"},
			code:  0,
			exact: "",
		},
		{
			name:  "argument order does not matter",
			files: map[string]string{"/work/order.xml": validOrder, "/work/order.xsd": orderSchema},
			args:  []string{"order.xsd", "order.xml"},
			code:  0,
			exact: "",
		},
		{
			name:  "no arguments",
			args:  nil,
			code:  1,
			exact: "XMLValidator - Version 1.0.0\nUsage : xmlvalidator <input.xml> <input.xsd>\nERROR: Wrong parameters entered.\n",
		},
		{
			name:  "three arguments",
			args:  []string{"a.xml", "b.xsd", "c.xml"},
			code:  1,
			exact: "XMLValidator - Version 1.0.0\nUsage : xmlvalidator <input.xml> <input.xsd>\nERROR: Wrong parameters entered.\n",
		},
		{
			name:  "unknown suffix",
			args:  []string{"a.txt", "b.xsd"},
			code:  1,
			exact: "XMLValidator - Version 1.0.0\nERROR: Wrong parameters entered.\n",
		},
		{
			name:  "duplicate suffix",
			args:  []string{"a.xml", "b.xml"},
			code:  1,
			exact: "XMLValidator - Version 1.0.0\nERROR: Wrong parameters entered.\n",
		},
		{
			name:  "suffix is case sensitive",
			args:  []string{"a.XML", "b.xsd"},
			code:  1,
			exact: "XMLValidator - Version 1.0.0\nERROR: Wrong parameters entered.\n",
		},
		{
			name:  "missing xml",
			files: map[string]string{"/work/order.xsd": orderSchema},
			args:  []string{"sub/missing.xml", "order.xsd"},
			code:  1,
			exact: "ERROR: File \"sub/missing.xml\" does not exist\n",
		},
		{
			name:  "missing xsd",
			files: map[string]string{"/work/order.xml": validOrder},
			args:  []string{"order.xml", "missing.xsd"},
			code:  1,
			exact: "ERROR: File \"missing.xsd\" does not exist\n",
		},
		{
			name:     "binary xml",
			files:    map[string]string{"/work/blob.xml": "\x00\x01\x02\xff\xfe", "/work/order.xsd": orderSchema},
			args:     []string{"blob.xml", "order.xsd"},
			code:     1,
			contains: []string{"ERROR: given XML is not a XML: \nException:\n"},
		},
		{
			name:     "xsd is plain text",
			files:    map[string]string{"/work/order.xml": validOrder, "/work/notes.xsd": "just some notes"},
			args:     []string{"order.xml", "notes.xsd"},
			code:     1,
			contains: []string{"ERROR: given XSD is not a XML: \nException:\n"},
		},
		{
			name: "latin1 document and schema",
			files: map[string]string{
				"/work/latin.xml": "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<menu><dish>caf\xe9 cr\xe8me</dish></menu>",
				"/work/latin.xsd": "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" + `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="menu">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="dish" type="xs:string"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`,
			},
			args:  []string{"latin.xml", "latin.xsd"},
			code:  0,
			exact: "",
		},
		{
			name:     "unsupported encoding",
			files:    map[string]string{"/work/odd.xml": `<?xml version="1.0" encoding="x-no-such"?><order/>`, "/work/order.xsd": orderSchema},
			args:     []string{"odd.xml", "order.xsd"},
			code:     1,
			contains: []string{"ERROR: given XML is not a XML: \nException:\nunsupported encoding \"x-no-such\""},
		},
		{
			name:  "text before the root",
			files: map[string]string{"/work/order.xml": "hello" + validOrder[len(`<?xml version="1.0"?>`):], "/work/order.xsd": orderSchema},
			args:  []string{"order.xml", "order.xsd"},
			code:  1,
			exact: "ERROR: given XML is not a XML: \nException:\nData at the root level is invalid.\n",
		},
		{
			name:     "schema violation",
			files:    map[string]string{"/work/order.xml": orderMissingTotal, "/work/order.xsd": orderSchema},
			args:     []string{"order.xml", "order.xsd"},
			code:     1,
			contains: []string{"ERROR: XML is not Valid against schema: \nException:\nThe element 'order' has incomplete content. List of possible elements expected: 'item, total'."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPipeline(t, tt.files)
			code := p.Run(tt.args)
			assert.Equal(t, tt.code, code)
			if tt.contains == nil {
				assert.Equal(t, tt.exact, out.String())
				return
			}
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestPipelineCheckStages(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		args  []string
		stage error
	}{
		{"bad arguments", nil, []string{"x"}, ErrBadArguments},
		{"missing file", nil, []string{"a.xml", "a.xsd"}, ErrFileNotFound},
		{"not xml", map[string]string{"/work/a.xml": "hello", "/work/a.xsd": orderSchema}, []string{"a.xml", "a.xsd"}, ErrNotXML},
		{"schema invalid", map[string]string{"/work/a.xml": orderMissingTotal, "/work/a.xsd": orderSchema}, []string{"a.xml", "a.xsd"}, ErrSchemaInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t, tt.files)
			err := p.Check(tt.args)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.stage))

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Contains(t, stageErr.Message, "ERROR: ")
		})
	}
}

func TestPipelineCompileAndValidationErrorsCombine(t *testing.T) {
	schema := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="note" type="missing"/>
</xs:schema>`
	p, out := newTestPipeline(t, map[string]string{
		"/work/note.xml": `<memo/>`,
		"/work/note.xsd": schema,
	})

	require.Equal(t, 1, p.Run([]string{"note.xml", "note.xsd"}))
	text := out.String()
	assert.Contains(t, text, "ERROR: XML is not Valid against schema: ")
	assert.Contains(t, text, "\nException:\nType 'missing' is not declared. An error occurred at file:///work/note.xsd, (")
	assert.Contains(t, text, "\nException:\nThe 'memo' element is not declared.")
}

func TestPipelineIsIdempotent(t *testing.T) {
	p, out := newTestPipeline(t, map[string]string{
		"/work/order.xml": orderMissingTotal,
		"/work/order.xsd": orderSchema,
	})

	first := p.Run([]string{"order.xml", "order.xsd"})
	firstOut := out.String()
	out.Reset()
	second := p.Run([]string{"order.xml", "order.xsd"})

	assert.Equal(t, first, second)
	assert.Equal(t, firstOut, out.String())
}

func TestPipelineRejectsTwoRoots(t *testing.T) {
	p, out := newTestPipeline(t, map[string]string{
		"/work/a.xml": `<order id="1"/><order id="2"/>`,
		"/work/a.xsd": orderSchema,
	})

	assert.Equal(t, 1, p.Run([]string{"a.xml", "a.xsd"}))
	assert.Equal(t, "ERROR: given XML is not a XML: \nException:\nThere are multiple root elements.\n", out.String())
}
