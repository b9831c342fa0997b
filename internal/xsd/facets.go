package xsd

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// FacetValidator validates a value against a facet constraint. baseType is
// the simple type the value is being validated as; it decides how lengths
// are counted and how values are ordered.
type FacetValidator interface {
	Validate(value string, baseType Type) error
	Name() string
}

const (
	WhiteSpacePreserve = "preserve"
	WhiteSpaceReplace  = "replace"
	WhiteSpaceCollapse = "collapse"
)

var errIncomparable = errors.New("values are not comparable")

// PatternFacet holds the patterns declared in one derivation step. A value
// must match at least one of them.
type PatternFacet struct {
	Patterns []string
	regexes  []*regexp.Regexp
}

func (f *PatternFacet) Name() string {
	return "pattern"
}

func (f *PatternFacet) add(pattern string) error {
	translated, err := translateRegex(pattern)
	if err != nil {
		return err
	}
	re, err := regexp.Compile(translated)
	if err != nil {
		return fmt.Errorf("invalid pattern '%s': %v", pattern, err)
	}
	f.Patterns = append(f.Patterns, pattern)
	f.regexes = append(f.regexes, re)
	return nil
}

func (f *PatternFacet) Validate(value string, baseType Type) error {
	for _, re := range f.regexes {
		if re.MatchString(value) {
			return nil
		}
	}
	return errors.New("The Pattern constraint failed.")
}

// EnumerationFacet validates against the enumeration values of one
// derivation step.
type EnumerationFacet struct {
	Values []string
}

func (f *EnumerationFacet) Name() string {
	return "enumeration"
}

func (f *EnumerationFacet) Validate(value string, baseType Type) error {
	for _, allowed := range f.Values {
		if equalValues(value, allowed, baseType) {
			return nil
		}
	}
	return errors.New("The Enumeration constraint failed.")
}

// LengthFacet validates exact length
type LengthFacet struct {
	Value int
}

func (f *LengthFacet) Name() string {
	return "length"
}

func (f *LengthFacet) Validate(value string, baseType Type) error {
	if getLength(value, baseType) != f.Value {
		return errors.New("The actual length is not equal to the specified length.")
	}
	return nil
}

// MinLengthFacet validates minimum length
type MinLengthFacet struct {
	Value int
}

func (f *MinLengthFacet) Name() string {
	return "minLength"
}

func (f *MinLengthFacet) Validate(value string, baseType Type) error {
	if getLength(value, baseType) < f.Value {
		return errors.New("The actual length is less than the MinLength value.")
	}
	return nil
}

// MaxLengthFacet validates maximum length
type MaxLengthFacet struct {
	Value int
}

func (f *MaxLengthFacet) Name() string {
	return "maxLength"
}

func (f *MaxLengthFacet) Validate(value string, baseType Type) error {
	if getLength(value, baseType) > f.Value {
		return errors.New("The actual length is greater than the MaxLength value.")
	}
	return nil
}

// getLength measures a value the way the length facets count it: items for
// lists, octets for binary types and characters otherwise.
func getLength(value string, baseType Type) int {
	st, _ := baseType.(*SimpleType)
	if st != nil && st.Variety == ListVariety {
		return len(strings.Fields(value))
	}
	switch primitiveName(st) {
	case "hexBinary":
		return len(value) / 2
	case "base64Binary":
		decoded, err := decodeBase64(value)
		if err != nil {
			return 0
		}
		return len(decoded)
	}
	return len([]rune(value))
}

// boundFacet implements the four range facets.
type boundFacet struct {
	name  string
	Value string
	ok    func(cmp int) bool
}

func (f *boundFacet) Name() string {
	return f.name
}

func (f *boundFacet) Validate(value string, baseType Type) error {
	cmp, err := compareValues(value, f.Value, baseType)
	if err != nil || !f.ok(cmp) {
		return fmt.Errorf("The %s constraint failed.", strings.ToUpper(f.name[:1])+f.name[1:])
	}
	return nil
}

func newBoundFacet(name, value string) *boundFacet {
	f := &boundFacet{name: name, Value: value}
	switch name {
	case "minInclusive":
		f.ok = func(cmp int) bool { return cmp >= 0 }
	case "maxInclusive":
		f.ok = func(cmp int) bool { return cmp <= 0 }
	case "minExclusive":
		f.ok = func(cmp int) bool { return cmp > 0 }
	case "maxExclusive":
		f.ok = func(cmp int) bool { return cmp < 0 }
	}
	return f
}

// TotalDigitsFacet validates total number of digits
type TotalDigitsFacet struct {
	Value int
}

func (f *TotalDigitsFacet) Name() string {
	return "totalDigits"
}

func (f *TotalDigitsFacet) Validate(value string, baseType Type) error {
	whole, fraction := decimalDigits(value)
	if len(whole)+len(fraction) > f.Value {
		return errors.New("The TotalDigits constraint failed.")
	}
	return nil
}

// FractionDigitsFacet validates number of fraction digits
type FractionDigitsFacet struct {
	Value int
}

func (f *FractionDigitsFacet) Name() string {
	return "fractionDigits"
}

func (f *FractionDigitsFacet) Validate(value string, baseType Type) error {
	if _, fraction := decimalDigits(value); len(fraction) > f.Value {
		return errors.New("The FractionDigits constraint failed.")
	}
	return nil
}

// decimalDigits splits a decimal literal into its significant integer and
// fraction digits.
func decimalDigits(value string) (string, string) {
	digits := strings.TrimLeft(value, "+-")
	whole, fraction, _ := strings.Cut(digits, ".")
	whole = strings.TrimLeft(whole, "0")
	fraction = strings.TrimRight(fraction, "0")
	if whole == "" && fraction == "" {
		whole = "0"
	}
	return whole, fraction
}

// NormalizeWhiteSpace normalizes whitespace according to the facet value
func NormalizeWhiteSpace(value string, whiteSpace string) string {
	switch whiteSpace {
	case WhiteSpaceReplace:
		return strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, value)
	case WhiteSpaceCollapse:
		return strings.Join(strings.FieldsFunc(value, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\n' || r == '\r'
		}), " ")
	default:
		return value
	}
}

func parseDecimal(value string) (*big.Rat, bool) {
	s := strings.TrimPrefix(value, "+")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	if neg {
		s = "-" + s
	}
	return new(big.Rat).SetString(s)
}

func parseFloat(value string) (float64, bool) {
	switch value {
	case "INF":
		return math.Inf(1), true
	case "-INF":
		return math.Inf(-1), true
	case "NaN":
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(value, 64)
	return f, err == nil
}

// averageMonth is the length of a Gregorian month in seconds.
var averageMonth = big.NewRat(2629746, 1)

func durationSeconds(value string) (*big.Rat, bool) {
	d, err := parseDuration(value)
	if err != nil {
		return nil, false
	}
	total := new(big.Rat).Mul(big.NewRat(d.months, 1), averageMonth)
	total.Add(total, d.seconds)
	if d.negative {
		total.Neg(total)
	}
	return total, true
}

// compareValues orders two values in the value space of baseType.
func compareValues(v1, v2 string, baseType Type) (int, error) {
	st, _ := baseType.(*SimpleType)
	primitive := primitiveName(st)
	switch primitive {
	case "decimal":
		a, ok1 := parseDecimal(v1)
		b, ok2 := parseDecimal(v2)
		if !ok1 || !ok2 {
			return 0, errIncomparable
		}
		return a.Cmp(b), nil
	case "float", "double":
		a, ok1 := parseFloat(v1)
		b, ok2 := parseFloat(v2)
		if !ok1 || !ok2 || math.IsNaN(a) || math.IsNaN(b) {
			return 0, errIncomparable
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	case "duration":
		a, ok1 := durationSeconds(v1)
		b, ok2 := durationSeconds(v2)
		if !ok1 || !ok2 {
			return 0, errIncomparable
		}
		return a.Cmp(b), nil
	case "dateTime", "date", "time", "gYearMonth", "gYear", "gMonthDay", "gDay", "gMonth":
		return compareTemporal(primitive, v1, v2)
	}
	return strings.Compare(v1, v2), nil
}

// equalValues reports whether two lexical forms denote the same value.
func equalValues(v1, v2 string, baseType Type) bool {
	if st, ok := baseType.(*SimpleType); ok && st.Variety == AtomicVariety {
		ws := st.whiteSpace()
		v1, v2 = NormalizeWhiteSpace(v1, ws), NormalizeWhiteSpace(v2, ws)
		switch primitiveName(st) {
		case "decimal", "float", "double", "duration", "dateTime", "date", "time",
			"gYearMonth", "gYear", "gMonthDay", "gDay", "gMonth":
			cmp, err := compareValues(v1, v2, st)
			return err == nil && cmp == 0
		case "boolean":
			return (v1 == "true" || v1 == "1") == (v2 == "true" || v2 == "1")
		}
	}
	return v1 == v2
}

// ParseFacet parses a facet element and returns the appropriate
// FacetValidator. Enumeration and pattern values accumulate per derivation
// step, so callers merge them with mergeFacet.
func ParseFacet(name string, value string) (FacetValidator, error) {
	nonNegative := func() (int, error) {
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("The value '%s' is not valid for the '%s' facet; it must be a non-negative integer.", value, name)
		}
		return v, nil
	}

	switch name {
	case "pattern":
		f := &PatternFacet{}
		if err := f.add(value); err != nil {
			return nil, err
		}
		return f, nil
	case "enumeration":
		return &EnumerationFacet{Values: []string{value}}, nil
	case "length", "minLength", "maxLength", "totalDigits", "fractionDigits":
		v, err := nonNegative()
		if err != nil {
			return nil, err
		}
		switch name {
		case "length":
			return &LengthFacet{Value: v}, nil
		case "minLength":
			return &MinLengthFacet{Value: v}, nil
		case "maxLength":
			return &MaxLengthFacet{Value: v}, nil
		case "totalDigits":
			if v == 0 {
				return nil, fmt.Errorf("The value '%s' is not valid for the 'totalDigits' facet; it must be a positive integer.", value)
			}
			return &TotalDigitsFacet{Value: v}, nil
		default:
			return &FractionDigitsFacet{Value: v}, nil
		}
	case "minInclusive", "maxInclusive", "minExclusive", "maxExclusive":
		return newBoundFacet(name, value), nil
	}
	return nil, fmt.Errorf("The '%s' facet is not supported.", name)
}

// mergeFacet folds f into facets, combining repeated pattern and
// enumeration facets of the same step.
func mergeFacet(facets []FacetValidator, f FacetValidator) []FacetValidator {
	for _, existing := range facets {
		switch e := existing.(type) {
		case *PatternFacet:
			if p, ok := f.(*PatternFacet); ok {
				e.Patterns = append(e.Patterns, p.Patterns...)
				e.regexes = append(e.regexes, p.regexes...)
				return facets
			}
		case *EnumerationFacet:
			if en, ok := f.(*EnumerationFacet); ok {
				e.Values = append(e.Values, en.Values...)
				return facets
			}
		}
	}
	return append(facets, f)
}

// ValidateFacets validates a value against a list of facets
func ValidateFacets(value string, facets []FacetValidator, baseType Type) error {
	for _, f := range facets {
		if err := f.Validate(value, baseType); err != nil {
			return err
		}
	}
	return nil
}
