package xpath

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes the XPath subset allowed in xs:selector and xs:field.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	// Must precede Punct so ".//" is not split into "." "/" "/".
	{Name: "Descendant", Pattern: `\.//`},
	// Must precede Name so "child::a" is not read as the name "child".
	{Name: "Axis", Pattern: `(?:child|attribute)::`},
	{Name: "Name", Pattern: `[\p{L}_][\p{L}\p{N}_.\-]*(?::(?:[\p{L}_][\p{L}\p{N}_.\-]*|\*))?`},
	{Name: "Punct", Pattern: `[./@|*]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type rawUnion struct {
	Paths []*rawPath `@@ ( "|" @@ )*`
}

type rawPath struct {
	Descendant bool       `@Descendant?`
	Steps      []*rawStep `@@ ( "/" @@ )*`
}

type rawStep struct {
	Self bool   `  @"."`
	Axis string `| ( @( Axis | "@" )?`
	Name string `    @( Name | "*" ) )`
}

func (s *rawStep) attribute() bool {
	return s.Axis == "@" || s.Axis == "attribute::"
}

var parser = participle.MustBuild[rawUnion](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace"),
)
