package glob

import "testing"

func TestMatchBasicWildcards(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*.txt", "a.txt", true},
		{"*.txt", "a.tar", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"[abc].txt", "b.txt", true},
		{"[abc].txt", "d.txt", false},
		{"[!abc].txt", "d.txt", true},
		{"[a-c].txt", "b.txt", true},
		{"[a-c].txt", "z.txt", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.name); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestMatchFNMPathnameWildcardsDoNotCrossSlash(t *testing.T) {
	if Match("*.txt", "sub/a.txt") {
		t.Fatal("'*' must not match across a '/' boundary")
	}
	if Match("sub/*.txt", "sub/a.txt") == false {
		t.Fatal("'*' should still match within a single path component")
	}
	if Match("?", "/") {
		t.Fatal("'?' must not match '/'")
	}
}

func TestMatchBackslashEscapesWildcard(t *testing.T) {
	if !Match(`a\*c`, "a*c") {
		t.Fatal("escaped '*' should match a literal '*'")
	}
	if Match(`a\*c`, "abc") {
		t.Fatal("escaped '*' should not behave as a wildcard")
	}
}

func TestHasWildcard(t *testing.T) {
	if HasWildcard(`a\*b`) {
		t.Fatal("escaped wildcard should not count as a wildcard")
	}
	if !HasWildcard("a*b") {
		t.Fatal("expected '*' to be detected as a wildcard")
	}
	if !HasWildcard("a[bc]d") {
		t.Fatal("expected '[' to be detected as a wildcard")
	}
}

func TestUnescapeRemovesBackslashes(t *testing.T) {
	if got := Unescape(`a\*b\?c`); got != "a*b?c" {
		t.Fatalf("Unescape = %q, want a*b?c", got)
	}
}
