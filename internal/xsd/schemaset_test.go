package xsd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xsHeader = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"`

// loadSet compiles main from an in-memory filesystem holding files.
func loadSet(t *testing.T, files map[string]string, namespace, main string) (*SchemaSet, error) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	set := NewSchemaSet(fs)
	return set, set.Add(namespace, main)
}

// mustLoad compiles a single schema document and fails on any error.
func mustLoad(t *testing.T, schema string) *SchemaSet {
	t.Helper()
	set, err := loadSet(t, map[string]string{"/schema.xsd": schema}, "", "/schema.xsd")
	require.NoError(t, err)
	return set
}

// messages returns the messages of every compile error of set.
func messages(set *SchemaSet) []string {
	var out []string
	for _, e := range set.Errors() {
		out = append(out, e.Message)
	}
	return out
}

func validateDoc(t *testing.T, set *SchemaSet, doc string) []Violation {
	t.Helper()
	parsed, err := xmldom.Decode(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	return NewValidator(set).Validate(parsed)
}

func violationMessages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

func TestSchemaSetIncludeAndImport(t *testing.T) {
	files := map[string]string{
		"/s/main.xsd": xsHeader + ` xmlns:t="urn:main" xmlns:o="urn:other" targetNamespace="urn:main" elementFormDefault="qualified">
  <xs:include schemaLocation="types.xsd"/>
  <xs:include schemaLocation="chameleon.xsd"/>
  <xs:import namespace="urn:other" schemaLocation="sub/other.xsd"/>
  <xs:element name="root">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="code" type="t:Code"/>
        <xs:element name="flag" type="t:Flag"/>
        <xs:element ref="o:extra"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`,
		"/s/types.xsd": xsHeader + ` targetNamespace="urn:main">
  <xs:include schemaLocation="main.xsd"/>
  <xs:simpleType name="Code">
    <xs:restriction base="xs:string"><xs:pattern value="[A-Z]{3}"/></xs:restriction>
  </xs:simpleType>
</xs:schema>`,
		"/s/chameleon.xsd": xsHeader + `>
  <xs:simpleType name="Flag">
    <xs:restriction base="xs:boolean"/>
  </xs:simpleType>
</xs:schema>`,
		"/s/sub/other.xsd": xsHeader + ` targetNamespace="urn:other">
  <xs:element name="extra" type="xs:int"/>
</xs:schema>`,
	}
	set, err := loadSet(t, files, "", "/s/main.xsd")
	require.NoError(t, err)
	assert.Empty(t, set.Warnings())
	assert.ElementsMatch(t, []string{"urn:main", "urn:other"}, set.Schema().TargetNamespaces())

	ok := `<root xmlns="urn:main" xmlns:o="urn:other"><code>ABC</code><flag>true</flag><o:extra>1</o:extra></root>`
	assert.Empty(t, validateDoc(t, set, ok))

	bad := `<root xmlns="urn:main" xmlns:o="urn:other"><code>abc</code><flag>true</flag><o:extra>1</o:extra></root>`
	got := violationMessages(validateDoc(t, set, bad))
	require.Len(t, got, 1)
	assert.Equal(t, "The 'urn:main:code' element is invalid - The value 'abc' is invalid according to its datatype 'urn:main:Code' - The Pattern constraint failed.", got[0])
}

func TestSchemaSetLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		namespace string
		want      string
	}{
		{
			name:  "root is not a schema",
			files: map[string]string{"/a.xsd": `<schema/>`},
			want:  "The root element of a W3C XML Schema should be <schema> and its namespace should be 'http://www.w3.org/2001/XMLSchema'.",
		},
		{
			name:      "namespace hint mismatch",
			files:     map[string]string{"/a.xsd": xsHeader + ` targetNamespace="urn:a"/>`},
			namespace: "urn:b",
			want:      "The targetNamespace parameter 'urn:b' should be the same value as the targetNamespace 'urn:a' of the schema.",
		},
		{
			name: "include with another namespace",
			files: map[string]string{
				"/a.xsd": xsHeader + ` targetNamespace="urn:a"><xs:include schemaLocation="b.xsd"/></xs:schema>`,
				"/b.xsd": xsHeader + ` targetNamespace="urn:b"/>`,
			},
			want: "The targetNamespace 'urn:b' of included/redefined schema should be the same as the targetNamespace 'urn:a' of the including schema.",
		},
		{
			name: "import namespace mismatch",
			files: map[string]string{
				"/a.xsd": xsHeader + ` targetNamespace="urn:a"><xs:import namespace="urn:x" schemaLocation="b.xsd"/></xs:schema>`,
				"/b.xsd": xsHeader + ` targetNamespace="urn:b"/>`,
			},
			want: "The namespace attribute 'urn:x' of an import should be the same value as the targetNamespace 'urn:b' of the imported schema.",
		},
		{
			name:  "remote include",
			files: map[string]string{"/a.xsd": xsHeader + `><xs:include schemaLocation="https://example.com/b.xsd"/></xs:schema>`},
			want:  "Resolving of external URIs was prohibited.",
		},
		{
			name:  "redefine",
			files: map[string]string{"/a.xsd": xsHeader + `><xs:redefine schemaLocation="b.xsd"/></xs:schema>`},
			want:  "The 'redefine' element is not supported.",
		},
		{
			name:  "empty targetNamespace",
			files: map[string]string{"/a.xsd": xsHeader + ` targetNamespace=""/>`},
			want:  "The targetNamespace attribute cannot have empty string as its value.",
		},
		{
			name:  "unreadable root",
			files: map[string]string{},
			want:  "open /a.xsd: file does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := loadSet(t, tt.files, tt.namespace, "/a.xsd")
			require.Error(t, err)
			assert.Contains(t, messages(set), tt.want)
		})
	}
}

func TestSchemaSetRemoteRoot(t *testing.T) {
	_, err := loadSet(t, nil, "", "http://example.com/a.xsd")
	assert.EqualError(t, err, "Resolving of external URIs was prohibited.")
}

func TestSchemaSetMissingIncludeIsWarning(t *testing.T) {
	files := map[string]string{
		"/a.xsd": xsHeader + `>
  <xs:include schemaLocation="gone.xsd"/>
  <xs:element name="a" type="xs:string"/>
</xs:schema>`,
	}
	set, err := loadSet(t, files, "", "/a.xsd")
	require.NoError(t, err)

	warnings := set.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, SeverityWarning, warnings[0].Severity)
	assert.True(t, strings.HasPrefix(warnings[0].Message, "Cannot load the schema from the location 'gone.xsd' - "))
}

func TestSchemaSetChameleonHint(t *testing.T) {
	files := map[string]string{"/a.xsd": xsHeader + `><xs:element name="a" type="xs:string"/></xs:schema>`}
	set, err := loadSet(t, files, "urn:hint", "/a.xsd")
	require.NoError(t, err)
	assert.NotNil(t, set.Schema().ElementDecls[QName{Namespace: "urn:hint", Local: "a"}])
	assert.Empty(t, validateDoc(t, set, `<a xmlns="urn:hint">x</a>`))
}

func TestSchemaErrorRendering(t *testing.T) {
	e := &SchemaError{Message: "Type 'x' is not declared.", SourceURI: "file:///s.xsd", Line: 3, Column: 4}
	assert.Equal(t, "Type 'x' is not declared. An error occurred at file:///s.xsd, (3, 4).", e.Error())

	v := Violation{Message: "The 'a' element is not declared.", Position: Position{Line: 2, Column: 5}}
	assert.Equal(t, "The 'a' element is not declared. Line 2, position 5.", v.Error())
	assert.Equal(t, "Root element is missing.", Violation{Message: "Root element is missing."}.Error())
}
