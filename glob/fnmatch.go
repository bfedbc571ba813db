// Package glob implements wildcard expansion, component I of spec.md
// §4.8: `*`/`?`/`[…]` matching with backslash escapes and `FNM_PATHNAME`
// semantics (wildcards never cross a `/`), a generic recursive
// expander that drives `lister.Lister` one path segment at a time
// against session types with no native glob, and tilde handling.
//
// Grounded on spec.md §4.8's own description of the two
// implementations (generic recursive vs. native submit-the-pattern);
// there is no stdlib equivalent of FNM_PATHNAME fnmatch (path.Match
// lets `*` cross path separators), so the matcher here is hand-written
// per spec.md's mandate that this is core logic the module owns.
package glob

import "strings"

// Match reports whether name matches pattern under FNM_PATHNAME
// semantics: `*` and `?` never match a literal `/` in name, and a
// backslash escapes the character that follows it (both in the
// pattern and, transitively, the character it then requires literally
// in name).
func Match(pattern, name string) bool {
	return matchHere([]rune(pattern), []rune(name))
}

func matchHere(pat, name []rune) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '\\':
			if len(pat) < 2 {
				return false
			}
			if len(name) == 0 || name[0] != pat[1] {
				return false
			}
			pat, name = pat[2:], name[1:]

		case '*':
			for len(pat) > 0 && pat[0] == '*' {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return !containsSlash(name)
			}
			for i := 0; i <= len(name); i++ {
				if i > 0 && name[i-1] == '/' {
					break
				}
				if matchHere(pat, name[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(name) == 0 || name[0] == '/' {
				return false
			}
			pat, name = pat[1:], name[1:]

		case '[':
			matched, rest, ok := matchBracket(pat, name)
			if !ok {
				// Malformed bracket expression: treat '[' as a literal,
				// matching classic fnmatch fallback behaviour.
				if len(name) == 0 || name[0] != '[' {
					return false
				}
				pat, name = pat[1:], name[1:]
				continue
			}
			if !matched {
				return false
			}
			pat, name = rest, name[1:]

		default:
			if len(name) == 0 || name[0] != pat[0] {
				return false
			}
			pat, name = pat[1:], name[1:]
		}
	}
	return len(name) == 0
}

func containsSlash(r []rune) bool {
	for _, c := range r {
		if c == '/' {
			return true
		}
	}
	return false
}

// matchBracket parses one `[...]` class starting at pat[0] == '['. It
// returns whether name[0] is in the class, the pattern slice
// following the closing ']', and whether the class parsed
// successfully at all (a dangling unterminated '[' reports ok=false).
func matchBracket(pat, name []rune) (matched bool, rest []rune, ok bool) {
	i := 1
	negate := false
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		negate = true
		i++
	}
	start := i
	// A ']' immediately after the opening (or after '!') is a literal
	// member of the class, not the terminator.
	if i < len(pat) && pat[i] == ']' {
		i++
	}
	for i < len(pat) && pat[i] != ']' {
		i++
	}
	if i >= len(pat) {
		return false, nil, false
	}
	class := pat[start:i]
	rest = pat[i+1:]
	if len(name) == 0 {
		return false, rest, true
	}
	in := classContains(class, name[0])
	return in != negate, rest, true
}

func classContains(class []rune, c rune) bool {
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if lo <= c && c <= hi {
				return true
			}
			i += 2
			continue
		}
		if class[i] == c {
			return true
		}
	}
	return false
}

// HasWildcard reports whether pattern contains an unescaped `*`, `?`
// or `[`.
func HasWildcard(pattern string) bool {
	r := []rune(pattern)
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// Unescape removes backslash escapes from a pattern with no
// wildcards, per spec.md §4.8's glob-idempotence rule ("globbing a
// pattern with no wildcards returns exactly [pattern] after
// unquoting backslashes").
func Unescape(pattern string) string {
	var b strings.Builder
	r := []rune(pattern)
	for i := 0; i < len(r); i++ {
		if r[i] == '\\' && i+1 < len(r) {
			i++
		}
		b.WriteRune(r[i])
	}
	return b.String()
}
