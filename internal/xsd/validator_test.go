package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const librarySchema = xsHeader + `>
  <xs:element name="library">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="book" type="Book" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="version" type="xs:decimal" fixed="1.0"/>
    </xs:complexType>
  </xs:element>
  <xs:complexType name="Book">
    <xs:sequence>
      <xs:element name="title" type="xs:string"/>
      <xs:element name="year" type="xs:gYear" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="id" type="xs:ID" use="required"/>
    <xs:attribute name="ref" type="xs:IDREFS"/>
    <xs:attribute name="lang" type="xs:language" default="en"/>
  </xs:complexType>
</xs:schema>`

func TestValidatorLibrary(t *testing.T) {
	set := mustLoad(t, librarySchema)

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "valid",
			doc:  `<library version="1.00"><book id="b1"><title>Go</title><year>2015</year></book><book id="b2" ref="b1"><title>XML</title></book></library>`,
		},
		{
			name: "undeclared root",
			doc:  `<shelf/>`,
			want: []string{"The 'shelf' element is not declared."},
		},
		{
			name: "missing required attribute",
			doc:  `<library><book><title>t</title></book></library>`,
			want: []string{"The required attribute 'id' is missing."},
		},
		{
			name: "undeclared attribute",
			doc:  `<library><book id="b1" color="red"><title>t</title></book></library>`,
			want: []string{"The 'color' attribute is not declared."},
		},
		{
			name: "invalid child",
			doc:  `<library><book id="b1"><title>t</title><author/></book></library>`,
			want: []string{"The element 'book' has invalid child element 'author'. List of possible elements expected: 'year'."},
		},
		{
			name: "incomplete content",
			doc:  `<library><book id="b1"/></library>`,
			want: []string{"The element 'book' has incomplete content. List of possible elements expected: 'title'."},
		},
		{
			name: "invalid simple value",
			doc:  `<library><book id="b1"><title>t</title><year>20x4</year></book></library>`,
			want: []string{"The 'year' element is invalid - The value '20x4' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:gYear' - The string '20x4' is not a valid gYear value."},
		},
		{
			name: "fixed attribute",
			doc:  `<library version="2.0"><book id="b1"><title>t</title></book></library>`,
			want: []string{"The value of the 'version' attribute does not equal its fixed value."},
		},
		{
			name: "duplicate ID",
			doc:  `<library><book id="b1"><title>a</title></book><book id="b1"><title>b</title></book></library>`,
			want: []string{"'b1' is already used as an ID."},
		},
		{
			name: "dangling IDREFS",
			doc:  `<library><book id="b1" ref="b1 b9"><title>a</title></book></library>`,
			want: []string{"Reference to undeclared ID is 'b9'."},
		},
		{
			name: "text in element-only content",
			doc:  `<library><book id="b1">oops<title>t</title></book></library>`,
			want: []string{"The element 'book' cannot contain text. List of possible elements expected: 'title'."},
		},
		{
			name: "invalid attribute value",
			doc:  `<library><book id="b1" lang="en_GB"><title>t</title></book></library>`,
			want: []string{"The 'lang' attribute is invalid - The value 'en_GB' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:language' - The string 'en_GB' is not a valid language value."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := violationMessages(validateDoc(t, set, tt.doc))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatorViolationDetails(t *testing.T) {
	set := mustLoad(t, librarySchema)
	violations := validateDoc(t, set, "<library>\n  <book id=\"b1\"/>\n</library>")
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, "cvc-complex-type.2.4.b", v.Code)
	assert.Equal(t, []string{"title"}, v.Expected)
	assert.Equal(t, "book", string(v.Element.LocalName()))

	diags := Diagnostics("doc.xml", violations)
	require.Len(t, diags, 1)
	assert.Equal(t, "doc.xml", diags[0].Position.File)
	assert.Equal(t, "book", diags[0].Tag)
	assert.Equal(t, "title", diags[0].Fields()["expected"])
}

const shapesSchema = xsHeader + ` xmlns="urn:t" targetNamespace="urn:t" elementFormDefault="qualified">
  <xs:complexType name="Shape" abstract="true">
    <xs:sequence><xs:element name="name" type="xs:string"/></xs:sequence>
  </xs:complexType>
  <xs:complexType name="Circle">
    <xs:complexContent>
      <xs:extension base="Shape">
        <xs:sequence><xs:element name="radius" type="xs:double"/></xs:sequence>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:complexType name="Label">
    <xs:sequence><xs:element name="text" type="xs:string"/></xs:sequence>
  </xs:complexType>
  <xs:element name="drawing">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="shape" type="Shape" maxOccurs="unbounded"/>
        <xs:element name="note" type="xs:string" nillable="true" minOccurs="0"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func TestValidatorXSITypeAndNil(t *testing.T) {
	set := mustLoad(t, shapesSchema)
	const open = `<drawing xmlns="urn:t" xmlns:t="urn:t" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "derived type",
			body: `<shape xsi:type="t:Circle"><name>c</name><radius>1.5</radius></shape><note xsi:nil="true"/>`,
		},
		{
			name: "abstract type",
			body: `<shape><name>c</name></shape>`,
			want: []string{"The element 'urn:t:shape' is abstract or its type is abstract."},
		},
		{
			name: "unknown xsi:type",
			body: `<shape xsi:type="t:Nope"><name>c</name></shape>`,
			want: []string{
				"This is an invalid xsi:type 'urn:t:Nope'.",
				"The element 'urn:t:shape' is abstract or its type is abstract.",
			},
		},
		{
			name: "unrelated xsi:type",
			body: `<shape xsi:type="t:Label"><text>c</text></shape>`,
			want: []string{
				"The xsi:type attribute value 'urn:t:Label' is not valid for the element 'urn:t:shape', either because it is not a type validly derived from the type in the schema, or because it has xsi:type derivation blocked.",
				"The element 'urn:t:shape' is abstract or its type is abstract.",
				"The element 'shape' in namespace 'urn:t' has invalid child element 'text' in namespace 'urn:t'. List of possible elements expected: 'name' in namespace 'urn:t'.",
			},
		},
		{
			name: "extension content is incomplete",
			body: `<shape xsi:type="t:Circle"><name>c</name></shape>`,
			want: []string{"The element 'shape' in namespace 'urn:t' has incomplete content. List of possible elements expected: 'radius' in namespace 'urn:t'."},
		},
		{
			name: "nil with content",
			body: `<shape xsi:type="t:Circle"><name>c</name><radius>1</radius></shape><note xsi:nil="true">text</note>`,
			want: []string{"The element 'urn:t:note' cannot contain text or element information items when it is nil."},
		},
		{
			name: "nil on non-nillable element",
			body: `<shape xsi:type="t:Circle" xsi:nil="true"><name>c</name><radius>1</radius></shape>`,
			want: []string{"If the 'nillable' attribute is false in the schema, the 'xsi:nil' attribute must not be present in the instance."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := violationMessages(validateDoc(t, set, open+tt.body+`</drawing>`))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatorFixedAndDefaultElements(t *testing.T) {
	set := mustLoad(t, xsHeader+`>
  <xs:element name="config">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="mode" type="xs:token" fixed="fast"/>
        <xs:element name="count" type="xs:int" default="3"/>
        <xs:element name="remark" fixed="ok">
          <xs:complexType mixed="true"><xs:sequence/></xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	assert.Empty(t, validateDoc(t, set, `<config><mode> fast </mode><count/><remark>ok</remark></config>`))
	assert.Empty(t, validateDoc(t, set, `<config><mode/><count>7</count><remark/></config>`))

	got := violationMessages(validateDoc(t, set, `<config><mode>slow</mode><count>x</count><remark>no</remark></config>`))
	assert.Equal(t, []string{
		"The value of the 'mode' element does not equal its fixed value.",
		"The 'count' element is invalid - The value 'x' is invalid according to its datatype 'http://www.w3.org/2001/XMLSchema:int' - The string 'x' is not a valid int value.",
		"The value of the 'remark' element does not equal its fixed value.",
	}, got)
}

func TestValidatorSimpleTypes(t *testing.T) {
	set := mustLoad(t, xsHeader+`>
  <xs:simpleType name="Size">
    <xs:restriction base="xs:string">
      <xs:enumeration value="S"/>
      <xs:enumeration value="M"/>
      <xs:enumeration value="L"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="Sizes">
    <xs:restriction>
      <xs:simpleType><xs:list itemType="Size"/></xs:simpleType>
      <xs:maxLength value="2"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="SizeOrNumber">
    <xs:union memberTypes="Size xs:positiveInteger"/>
  </xs:simpleType>
  <xs:element name="order">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="sizes" type="Sizes"/>
        <xs:element name="pick" type="SizeOrNumber"/>
        <xs:element name="price">
          <xs:complexType>
            <xs:simpleContent>
              <xs:extension base="xs:decimal">
                <xs:attribute name="currency" type="xs:string" use="required"/>
              </xs:extension>
            </xs:simpleContent>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	assert.Empty(t, validateDoc(t, set, `<order><sizes> S  L </sizes><pick>42</pick><price currency="EUR">9.99</price></order>`))

	got := violationMessages(validateDoc(t, set, `<order><sizes>S M L</sizes><pick>XL</pick><price currency="EUR"><cents/></price></order>`))
	assert.Equal(t, []string{
		"The 'sizes' element is invalid - The value 'S M L' is invalid according to its datatype 'Sizes' - The actual length is greater than the MaxLength value.",
		"The 'pick' element is invalid - The value 'XL' is invalid according to its datatype 'SizeOrNumber' - The value 'XL' is not valid according to any of the memberTypes of the union.",
		"The element 'price' cannot contain child element 'cents' because the parent element's content model is text only.",
	}, got)
}

func TestValidatorEmptyContent(t *testing.T) {
	set := mustLoad(t, xsHeader+`>
  <xs:element name="br">
    <xs:complexType>
      <xs:attribute name="clear" type="xs:string"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	assert.Empty(t, validateDoc(t, set, `<br clear="all">  </br>`))
	assert.Equal(t, []string{"The element 'br' cannot contain text. Content model is empty."},
		violationMessages(validateDoc(t, set, `<br>text</br>`)))
	assert.Equal(t, []string{"The element 'br' cannot contain child element 'b' because the parent element's content model is empty."},
		violationMessages(validateDoc(t, set, `<br><b/></br>`)))
}

func TestValidatorXMLNamespaceAttributes(t *testing.T) {
	set := mustLoad(t, xsHeader+`>
  <xs:element name="p">
    <xs:complexType mixed="true">
      <xs:attribute ref="xml:lang"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`)

	assert.Empty(t, validateDoc(t, set, `<p xml:lang="de">Hallo</p>`))
	assert.Empty(t, validateDoc(t, set, `<p xml:lang="">?</p>`))
	assert.Len(t, validateDoc(t, set, `<p xml:lang="not a language">x</p>`), 1)
}

func TestValidatorIsRepeatable(t *testing.T) {
	set := mustLoad(t, librarySchema)
	doc := `<library><book id="b1"><title>a</title></book><book id="b1"><title>b</title></book></library>`

	first := violationMessages(validateDoc(t, set, doc))
	second := violationMessages(validateDoc(t, set, doc))
	assert.Equal(t, first, second)
	assert.Len(t, first, 1)
}
