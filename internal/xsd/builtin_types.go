package xsd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// BuiltinType describes a built-in XSD simple type. Validator checks the
// lexical space of the type, including the implicit range restrictions of
// the derived numeric types.
type BuiltinType struct {
	Name       string
	Base       string
	WhiteSpace string
	ItemType   string
	Validator  func(value string) error
}

// Bases precede the types derived from them.
var builtinDefs = []BuiltinType{
	{Name: "anySimpleType", WhiteSpace: WhiteSpacePreserve, Validator: validateString},

	// Primitive types
	{Name: "string", Base: "anySimpleType", WhiteSpace: WhiteSpacePreserve, Validator: validateString},
	{Name: "boolean", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateBoolean},
	{Name: "decimal", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateDecimal},
	{Name: "float", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: floatValidator("float", 32)},
	{Name: "double", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: floatValidator("double", 64)},
	{Name: "duration", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateDuration},
	{Name: "dateTime", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("dateTime")},
	{Name: "time", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("time")},
	{Name: "date", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("date")},
	{Name: "gYearMonth", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("gYearMonth")},
	{Name: "gYear", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("gYear")},
	{Name: "gMonthDay", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("gMonthDay")},
	{Name: "gDay", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("gDay")},
	{Name: "gMonth", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: temporalValidator("gMonth")},
	{Name: "hexBinary", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateHexBinary},
	{Name: "base64Binary", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateBase64Binary},
	{Name: "anyURI", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateString},
	{Name: "QName", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateQName},
	{Name: "NOTATION", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, Validator: validateQName},

	// Derived types - strings
	{Name: "normalizedString", Base: "string", WhiteSpace: WhiteSpaceReplace, Validator: validateString},
	{Name: "token", Base: "normalizedString", WhiteSpace: WhiteSpaceCollapse, Validator: validateString},
	{Name: "language", Base: "token", WhiteSpace: WhiteSpaceCollapse, Validator: validateLanguage},
	{Name: "NMTOKEN", Base: "token", WhiteSpace: WhiteSpaceCollapse, Validator: validateNMTOKEN},
	{Name: "Name", Base: "token", WhiteSpace: WhiteSpaceCollapse, Validator: validateName},
	{Name: "NCName", Base: "Name", WhiteSpace: WhiteSpaceCollapse, Validator: validateNCName},
	{Name: "ID", Base: "NCName", WhiteSpace: WhiteSpaceCollapse, Validator: validateNCName},
	{Name: "IDREF", Base: "NCName", WhiteSpace: WhiteSpaceCollapse, Validator: validateNCName},
	{Name: "ENTITY", Base: "NCName", WhiteSpace: WhiteSpaceCollapse, Validator: validateNCName},

	// Derived types - lists
	{Name: "NMTOKENS", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, ItemType: "NMTOKEN"},
	{Name: "IDREFS", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, ItemType: "IDREF"},
	{Name: "ENTITIES", Base: "anySimpleType", WhiteSpace: WhiteSpaceCollapse, ItemType: "ENTITY"},

	// Derived types - numeric
	{Name: "integer", Base: "decimal", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("integer", nil, nil)},
	{Name: "nonPositiveInteger", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("nonPositiveInteger", nil, bigInt("0"))},
	{Name: "negativeInteger", Base: "nonPositiveInteger", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("negativeInteger", nil, bigInt("-1"))},
	{Name: "long", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("long", bigInt("-9223372036854775808"), bigInt("9223372036854775807"))},
	{Name: "int", Base: "long", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("int", bigInt("-2147483648"), bigInt("2147483647"))},
	{Name: "short", Base: "int", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("short", bigInt("-32768"), bigInt("32767"))},
	{Name: "byte", Base: "short", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("byte", bigInt("-128"), bigInt("127"))},
	{Name: "nonNegativeInteger", Base: "integer", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("nonNegativeInteger", bigInt("0"), nil)},
	{Name: "unsignedLong", Base: "nonNegativeInteger", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("unsignedLong", bigInt("0"), bigInt("18446744073709551615"))},
	{Name: "unsignedInt", Base: "unsignedLong", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("unsignedInt", bigInt("0"), bigInt("4294967295"))},
	{Name: "unsignedShort", Base: "unsignedInt", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("unsignedShort", bigInt("0"), bigInt("65535"))},
	{Name: "unsignedByte", Base: "unsignedShort", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("unsignedByte", bigInt("0"), bigInt("255"))},
	{Name: "positiveInteger", Base: "nonNegativeInteger", WhiteSpace: WhiteSpaceCollapse, Validator: integerValidator("positiveInteger", bigInt("1"), nil)},
}

var builtinTypes = map[string]*SimpleType{}

// xmlAttributes are the attributes of the xml namespace, available without
// importing a schema for it.
var xmlAttributes = map[string]*AttributeDecl{}

func init() {
	registerBuiltinTypes()
	registerXMLAttributes()
}

func registerBuiltinTypes() {
	for i := range builtinDefs {
		def := &builtinDefs[i]
		st := &SimpleType{
			QName:      QName{Namespace: XSDNamespace, Local: def.Name},
			Variety:    AtomicVariety,
			WhiteSpace: def.WhiteSpace,
			builtin:    def,
			state:      resolved,
		}
		if def.Base != "" {
			st.Base = builtinTypes[def.Base]
			st.BaseName = st.Base.QName
		}
		if def.ItemType != "" {
			st.Variety = ListVariety
			st.Item = builtinTypes[def.ItemType]
		}
		builtinTypes[def.Name] = st
	}
}

func registerXMLAttributes() {
	xmlName := func(local string) QName { return QName{Namespace: XMLNamespace, Local: local} }

	emptyString := &SimpleType{
		Variety: AtomicVariety,
		Base:    builtinTypes["string"],
		Facets:  []FacetValidator{&EnumerationFacet{Values: []string{""}}},
		state:   resolved,
	}
	lang := &SimpleType{
		Variety: UnionVariety,
		Members: []*SimpleType{builtinTypes["language"], emptyString},
		state:   resolved,
	}
	space := &SimpleType{
		Variety: AtomicVariety,
		Base:    builtinTypes["NCName"],
		Facets:  []FacetValidator{&EnumerationFacet{Values: []string{"default", "preserve"}}},
		state:   resolved,
	}

	for local, st := range map[string]*SimpleType{
		"lang":  lang,
		"space": space,
		"base":  builtinTypes["anyURI"],
		"id":    builtinTypes["ID"],
	} {
		xmlAttributes[local] = &AttributeDecl{
			Name:   xmlName(local),
			Type:   st,
			Use:    OptionalUse,
			Global: true,
			state:  resolved,
		}
	}
}

func builtinSimpleType(name string) *SimpleType {
	return builtinTypes[name]
}

// GetBuiltinType returns a built-in type by local name, ignoring any prefix.
func GetBuiltinType(name string) *SimpleType {
	if idx := strings.Index(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	return builtinTypes[name]
}

// IsBuiltinType checks if a type is a built-in XSD type
func IsBuiltinType(name string) bool {
	return GetBuiltinType(name) != nil
}

func bigInt(s string) *big.Int {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("xsd: bad integer constant " + s)
	}
	return i
}

func invalidLexical(value, typeName string) error {
	return fmt.Errorf("The string '%s' is not a valid %s value.", value, typeName)
}

var (
	integerPattern  = regexp.MustCompile(`^[+-]?\d+$`)
	decimalPattern  = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)
	floatPattern    = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?$`)
	languagePattern = regexp.MustCompile(`^[a-zA-Z]{1,8}(?:-[a-zA-Z0-9]{1,8})*$`)
	durationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
)

func validateString(string) error {
	return nil
}

func validateBoolean(value string) error {
	switch value {
	case "true", "false", "1", "0":
		return nil
	default:
		return invalidLexical(value, "Boolean")
	}
}

func validateDecimal(value string) error {
	if !decimalPattern.MatchString(value) {
		return invalidLexical(value, "Decimal")
	}
	return nil
}

func floatValidator(name string, bits int) func(string) error {
	return func(value string) error {
		switch value {
		case "INF", "-INF", "NaN":
			return nil
		}
		if !floatPattern.MatchString(value) {
			return invalidLexical(value, name)
		}
		if _, err := strconv.ParseFloat(value, bits); err != nil {
			return fmt.Errorf("Value '%s' was either too large or too small for %s.", value, name)
		}
		return nil
	}
}

func integerValidator(name string, minValue, maxValue *big.Int) func(string) error {
	return func(value string) error {
		if !integerPattern.MatchString(value) {
			return invalidLexical(value, name)
		}
		i, _ := new(big.Int).SetString(strings.TrimPrefix(value, "+"), 10)
		if (minValue != nil && i.Cmp(minValue) < 0) || (maxValue != nil && i.Cmp(maxValue) > 0) {
			return fmt.Errorf("Value '%s' was either too large or too small for %s.", value, name)
		}
		return nil
	}
}

type duration struct {
	negative bool
	months   int64
	seconds  *big.Rat
}

func parseDuration(value string) (duration, error) {
	m := durationPattern.FindStringSubmatch(value)
	if m == nil {
		return duration{}, invalidLexical(value, "duration")
	}
	if m[2] == "" && m[3] == "" && m[4] == "" && m[6] == "" && m[7] == "" && m[8] == "" {
		return duration{}, invalidLexical(value, "duration")
	}
	if m[5] == "T" {
		return duration{}, invalidLexical(value, "duration")
	}

	num := func(s string) *big.Rat {
		r := new(big.Rat)
		if s != "" {
			r.SetString(s)
		}
		return r
	}

	d := duration{negative: m[1] == "-"}
	months := new(big.Rat).Add(new(big.Rat).Mul(num(m[2]), big.NewRat(12, 1)), num(m[3]))
	if !months.IsInt() || !months.Num().IsInt64() {
		return duration{}, invalidLexical(value, "duration")
	}
	d.months = months.Num().Int64()

	seconds := new(big.Rat).Mul(num(m[4]), big.NewRat(86400, 1))
	seconds.Add(seconds, new(big.Rat).Mul(num(m[6]), big.NewRat(3600, 1)))
	seconds.Add(seconds, new(big.Rat).Mul(num(m[7]), big.NewRat(60, 1)))
	seconds.Add(seconds, num(m[8]))
	d.seconds = seconds
	return d, nil
}

func validateDuration(value string) error {
	_, err := parseDuration(value)
	return err
}

func temporalValidator(kind string) func(string) error {
	return func(value string) error {
		_, err := parseTemporal(kind, value)
		return err
	}
}

func validateHexBinary(value string) error {
	if len(value)%2 != 0 {
		return invalidLexical(value, "hexBinary")
	}
	if _, err := hex.DecodeString(value); err != nil {
		return invalidLexical(value, "hexBinary")
	}
	return nil
}

func decodeBase64(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(value, " ", ""))
}

func validateBase64Binary(value string) error {
	if _, err := decodeBase64(value); err != nil {
		return invalidLexical(value, "base64Binary")
	}
	return nil
}

func validateQName(value string) error {
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		local, prefix = prefix, ""
	}
	if found && !isNCName(prefix) || !isNCName(local) {
		return invalidLexical(value, "QName")
	}
	return nil
}

func validateLanguage(value string) error {
	if !languagePattern.MatchString(value) {
		return invalidLexical(value, "language")
	}
	return nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '·' ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

func isName(value string) bool {
	for i, r := range value {
		if i == 0 && !isNameStart(r) || !isNameChar(r) {
			return false
		}
	}
	return value != ""
}

func isNCName(value string) bool {
	return isName(value) && !strings.Contains(value, ":")
}

func validateName(value string) error {
	if !isName(value) {
		return invalidLexical(value, "Name")
	}
	return nil
}

func validateNCName(value string) error {
	if !isNCName(value) {
		return invalidLexical(value, "NCName")
	}
	return nil
}

func validateNMTOKEN(value string) error {
	if value == "" {
		return invalidLexical(value, "NMTOKEN")
	}
	for _, r := range value {
		if !isNameChar(r) {
			return invalidLexical(value, "NMTOKEN")
		}
	}
	return nil
}
