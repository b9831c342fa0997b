package xsd

import (
	"strings"
	"testing"

	"github.com/agentflare-ai/go-xmldom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structureErrors(t *testing.T, schema string) []string {
	t.Helper()
	doc, err := xmldom.Decode(strings.NewReader(schema))
	require.NoError(t, err)
	var out []string
	for _, e := range NewSchemaValidator("file:///s.xsd").ValidateSchema(doc.DocumentElement()) {
		out = append(out, e.Message)
	}
	return out
}

func TestSchemaValidatorStructure(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		want   string
	}{
		{
			name:   "unknown schema element",
			schema: xsHeader + `><xs:elementx name="a"/></xs:schema>`,
			want:   "The 'http://www.w3.org/2001/XMLSchema:elementx' element is not supported in this context.",
		},
		{
			name:   "foreign element",
			schema: xsHeader + ` xmlns:o="urn:o"><o:thing/></xs:schema>`,
			want:   "The 'urn:o:thing' element is not supported in this context.",
		},
		{
			name:   "unknown attribute",
			schema: xsHeader + `><xs:element name="a" colour="red"/></xs:schema>`,
			want:   "The 'colour' attribute is not supported in this context.",
		},
		{
			name:   "global element without name",
			schema: xsHeader + `><xs:element type="xs:string"/></xs:schema>`,
			want:   "The required attribute 'name' is missing.",
		},
		{
			name:   "global element with occurs",
			schema: xsHeader + `><xs:element name="a" minOccurs="0"/></xs:schema>`,
			want:   "The 'minOccurs' attribute is not supported in this context.",
		},
		{
			name:   "invalid name",
			schema: xsHeader + `><xs:element name="1a"/></xs:schema>`,
			want:   "The 'name' attribute is invalid - The value '1a' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:NCName'.",
		},
		{
			name:   "local element with name and ref",
			schema: xsHeader + `><xs:complexType name="t"><xs:sequence><xs:element name="a" ref="b"/></xs:sequence></xs:complexType></xs:schema>`,
			want:   "For element declaration either the name or the ref attribute must be present, but not both.",
		},
		{
			name:   "ref with type",
			schema: xsHeader + `><xs:complexType name="t"><xs:sequence><xs:element ref="b" type="xs:string"/></xs:sequence></xs:complexType></xs:schema>`,
			want:   "If ref is present, all of <complexType>, <simpleType>, <key>, <keyref>, <unique>, nillable, default, fixed, form, block and type must be absent.",
		},
		{
			name:   "default and fixed",
			schema: xsHeader + `><xs:element name="a" type="xs:string" default="x" fixed="y"/></xs:schema>`,
			want:   "The fixed and default attributes cannot both be present.",
		},
		{
			name:   "type and inline type",
			schema: xsHeader + `><xs:element name="a" type="xs:string"><xs:simpleType><xs:restriction base="xs:string"/></xs:simpleType></xs:element></xs:schema>`,
			want:   "The type attribute cannot be present with either simpleType or complexType.",
		},
		{
			name:   "bad boolean",
			schema: xsHeader + `><xs:element name="a" nillable="yes"/></xs:schema>`,
			want:   "The 'nillable' attribute is invalid - The value 'yes' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:boolean'.",
		},
		{
			name:   "bad form default",
			schema: xsHeader + ` elementFormDefault="always"/>`,
			want:   "The 'elementFormDefault' attribute is invalid - The value 'always' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:formChoice'.",
		},
		{
			name:   "minOccurs above maxOccurs",
			schema: xsHeader + `><xs:complexType name="t"><xs:sequence minOccurs="3" maxOccurs="2"/></xs:complexType></xs:schema>`,
			want:   "minOccurs value cannot be greater than maxOccurs value.",
		},
		{
			name:   "bad maxOccurs",
			schema: xsHeader + `><xs:complexType name="t"><xs:sequence maxOccurs="many"/></xs:complexType></xs:schema>`,
			want:   "The 'maxOccurs' attribute is invalid - The value 'many' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:allNNI'.",
		},
		{
			name:   "all with repeated particle",
			schema: xsHeader + `><xs:complexType name="t"><xs:all><xs:element name="a" maxOccurs="2"/></xs:all></xs:complexType></xs:schema>`,
			want:   "The {max occurs} of all the particles in the {particles} of an all group must be 0 or 1.",
		},
		{
			name:   "bad processContents",
			schema: xsHeader + `><xs:complexType name="t"><xs:sequence><xs:any processContents="loose"/></xs:sequence></xs:complexType></xs:schema>`,
			want:   "The 'processContents' attribute is invalid - The value 'loose' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:NMTOKEN' - The Enumeration constraint failed.",
		},
		{
			name:   "restriction without base",
			schema: xsHeader + `><xs:simpleType name="s"><xs:restriction/></xs:simpleType></xs:schema>`,
			want:   "The base attribute must be specified or a simpleType child must be present, but not both.",
		},
		{
			name:   "list with both item forms",
			schema: xsHeader + `><xs:simpleType name="s"><xs:list itemType="xs:int"><xs:simpleType><xs:restriction base="xs:int"/></xs:simpleType></xs:list></xs:simpleType></xs:schema>`,
			want:   "Either the itemType attribute or the simpleType child must be present, but not both.",
		},
		{
			name:   "empty union",
			schema: xsHeader + `><xs:simpleType name="s"><xs:union/></xs:simpleType></xs:schema>`,
			want:   "Either the memberTypes attribute must be non-empty or there must be at least one simpleType child.",
		},
		{
			name:   "key without field",
			schema: xsHeader + `><xs:element name="a"><xs:key name="k"><xs:selector xpath="b"/></xs:key></xs:element></xs:schema>`,
			want:   "The key constraint 'k' must have exactly one selector and at least one field.",
		},
		{
			name:   "empty xpath",
			schema: xsHeader + `><xs:element name="a"><xs:unique name="u"><xs:selector xpath=""/><xs:field xpath="@x"/></xs:unique></xs:element></xs:schema>`,
			want:   "The XPath of the selector cannot be empty.",
		},
		{
			name:   "duplicate id",
			schema: xsHeader + `><xs:element id="x" name="a"/><xs:element id="x" name="b"/></xs:schema>`,
			want:   "'x' is already used as an ID.",
		},
		{
			name:   "xmlns attribute declaration",
			schema: xsHeader + `><xs:attribute name="xmlns"/></xs:schema>`,
			want:   "The value 'xmlns' cannot be used as the name of an attribute declaration.",
		},
		{
			name:   "redefine",
			schema: xsHeader + `><xs:redefine schemaLocation="b.xsd"/></xs:schema>`,
			want:   "The 'redefine' element is not supported.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, structureErrors(t, tt.schema), tt.want)
		})
	}
}

func TestSchemaValidatorAcceptsWellFormedSchemas(t *testing.T) {
	for _, schema := range []string{librarySchema, shapesSchema, petsSchema, boxSchema} {
		assert.Empty(t, structureErrors(t, schema))
	}
}

func TestSchemaValidatorRoot(t *testing.T) {
	got := structureErrors(t, `<schema xmlns="urn:not-xsd"/>`)
	assert.Equal(t, []string{"The root element of a W3C XML Schema should be <schema> and its namespace should be 'http://www.w3.org/2001/XMLSchema'."}, got)
}
