package xsd

import (
	"fmt"
	"strings"
)

// Multi-character escapes of XML Schema regular expressions, as Go class
// bodies. They differ from the Perl classes of the same name.
var classEscapes = map[rune]string{
	'd': `\p{Nd}`,
	's': ` \t\n\r`,
	'w': `\p{L}\p{M}\p{N}\p{S}`,
	'W': `\p{P}\p{Z}\p{C}`,
	'i': `\p{L}_:`,
	'c': `\p{L}\p{M}\p{N}._:\-\x{B7}`,
}

// translateRegex rewrites an XML Schema pattern as an anchored Go regular
// expression.
func translateRegex(pattern string) (string, error) {
	var sb strings.Builder
	sb.WriteString(`^(?:`)

	runes := []rune(pattern)
	depth := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 >= len(runes) {
				return "", fmt.Errorf("invalid pattern '%s': trailing backslash", pattern)
			}
			i++
			esc, n, err := translateEscape(runes[i:], depth > 0)
			if err != nil {
				return "", fmt.Errorf("invalid pattern '%s': %v", pattern, err)
			}
			sb.WriteString(esc)
			i += n
		case r == '[':
			depth++
			sb.WriteRune('[')
			if i+1 < len(runes) && runes[i+1] == '^' {
				sb.WriteRune('^')
				i++
			}
		case r == ']' && depth > 0:
			depth--
			sb.WriteRune(']')
		case r == '-' && depth > 0 && i+1 < len(runes) && runes[i+1] == '[':
			return "", fmt.Errorf("invalid pattern '%s': character class subtraction is not supported", pattern)
		case depth == 0 && (r == '^' || r == '$'):
			sb.WriteRune('\\')
			sb.WriteRune(r)
		case depth == 0 && r == '.':
			sb.WriteString(`[^\n\r]`)
		default:
			sb.WriteRune(r)
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("invalid pattern '%s': unterminated character class", pattern)
	}

	sb.WriteString(`)$`)
	return sb.String(), nil
}

// translateEscape translates the escape starting at rest[0] (the character
// after the backslash). It returns the number of extra runes consumed.
func translateEscape(rest []rune, inClass bool) (string, int, error) {
	e := rest[0]
	switch e {
	case 'n':
		return `\n`, 0, nil
	case 'r':
		return `\r`, 0, nil
	case 't':
		return `\t`, 0, nil
	case '\\', '|', '.', '-', '^', '?', '*', '+', '{', '}', '(', ')', '[', ']', '$':
		return `\` + string(e), 0, nil
	case 'd', 's', 'w', 'W', 'i', 'c':
		if inClass {
			return classEscapes[e], 0, nil
		}
		return "[" + classEscapes[e] + "]", 0, nil
	case 'D', 'S', 'I', 'C':
		if inClass {
			return "", 0, fmt.Errorf("negated escape \\%c inside a character class is not supported", e)
		}
		return "[^" + classEscapes[rune(strings.ToLower(string(e))[0])] + "]", 0, nil
	case 'p', 'P':
		if len(rest) < 3 || rest[1] != '{' {
			return "", 0, fmt.Errorf("malformed \\%c escape", e)
		}
		end := -1
		for j := 2; j < len(rest); j++ {
			if rest[j] == '}' {
				end = j
				break
			}
		}
		if end < 0 {
			return "", 0, fmt.Errorf("malformed \\%c escape", e)
		}
		name := string(rest[2:end])
		if strings.HasPrefix(name, "Is") {
			return "", 0, fmt.Errorf("block escape \\%c{%s} is not supported", e, name)
		}
		return `\` + string(e) + "{" + name + "}", end, nil
	}
	return "", 0, fmt.Errorf("unknown escape \\%c", e)
}
