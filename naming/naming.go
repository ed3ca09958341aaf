// Package naming converts Go identifiers into the names scripts see.
//
// A Policy is a pure string transform with three independent switches
// (first-letter lowering, underscore separation, full lowercasing) and a
// scope selecting whether it applies to type names, member names or both:
//
//	p := naming.Policy{FirstLower: true, Underscore: true, Scope: naming.ScopeBoth}
//	p.MemberName("GetURLPath", "") // "get_url_path"
//	p.ClassName("Widget", "")      // "widget"
package naming

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scope selects which names a Policy rewrites.
type Scope uint8

const (
	ScopeClass  Scope = iota + 1 // type names only
	ScopeMember                  // member names only
	ScopeBoth                    // type and member names
)

// String returns the configuration spelling of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeClass:
		return "class"
	case ScopeMember:
		return "member"
	case ScopeBoth:
		return "both"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// ParseScope parses "class", "member" or "both".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "type":
		return ScopeClass, nil
	case "member", "method":
		return ScopeMember, nil
	case "both", "":
		return ScopeBoth, nil
	}
	return 0, fmt.Errorf("naming: unknown scope %q", s)
}

// Policy describes how Go identifiers are rewritten.
type Policy struct {
	FirstLower       bool
	Underscore       bool
	Lowercase        bool
	ApplyToOverrides bool // explicit names are rewritten too
	Scope            Scope
}

// Default lowers the first letter of type and member names, so Describe
// becomes describe and Widget becomes widget.
func Default() Policy {
	return Policy{FirstLower: true, Scope: ScopeBoth}
}

// Convert applies the enabled transforms to name, ignoring scope.
func (p Policy) Convert(name string) string {
	if name == "" {
		return ""
	}
	n := name
	if p.Underscore {
		n = toSnakeCase(n)
	}
	if p.FirstLower {
		r, size := utf8.DecodeRuneInString(n)
		n = string(unicode.ToLower(r)) + n[size:]
	}
	if p.Lowercase {
		n = strings.ToLower(n)
	}
	return n
}

// ClassName returns the exposed name of a type. override wins when set and
// is only rewritten if ApplyToOverrides is on.
func (p Policy) ClassName(goName, override string) string {
	return p.apply(goName, override, p.Scope == ScopeClass || p.Scope == ScopeBoth)
}

// MemberName returns the exposed name of a method or field.
func (p Policy) MemberName(goName, override string) string {
	return p.apply(goName, override, p.Scope == ScopeMember || p.Scope == ScopeBoth)
}

func (p Policy) apply(goName, override string, inScope bool) string {
	override = strings.TrimSpace(override)
	if override != "" {
		if inScope && p.ApplyToOverrides {
			return p.Convert(override)
		}
		return override
	}
	if inScope {
		return p.Convert(goName)
	}
	return goName
}

// toSnakeCase inserts underscores at word boundaries and lowercases each
// word. Runs of capitals are kept together: GetURLPath -> get_url_path,
// ParseHTTPRequest -> parse_http_request.
func toSnakeCase(s string) string {
	runes := []rune(s)
	var result strings.Builder
	result.Grow(len(s) + 4)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		acronymEnd := i + 1
		for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
			acronymEnd++
		}

		if acronymEnd > i+1 {
			// Last uppercase before lowercase starts next word, not part of acronym
			if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
				acronymEnd--
			}
		}

		if i > 0 && runes[i-1] != '_' {
			result.WriteByte('_')
		}

		for j := i; j < acronymEnd; j++ {
			result.WriteRune(unicode.ToLower(runes[j]))
		}
		i = acronymEnd - 1
	}
	return result.String()
}
