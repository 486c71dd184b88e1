package envscope

import "testing"

func TestSubstituteLeavesUnresolvedLiteral(t *testing.T) {
	s := NewScope()
	s.Set("foo", Entry{Value: "bar"})
	got := Substitute("$foo/$missing", s)
	if got != "bar/$missing" {
		t.Errorf("Substitute = %q, want %q", got, "bar/$missing")
	}
}

func TestShellExpandDefault(t *testing.T) {
	s := NewScope()
	got := ShellExpand("${name:-fallback}", s)
	if got != "fallback" {
		t.Errorf("ShellExpand = %q, want %q", got, "fallback")
	}
}

func TestShellExpandPreferResolved(t *testing.T) {
	s := NewScope()
	s.Set("name", Entry{Value: "actual"})
	got := ShellExpand("${name:-fallback}", s)
	if got != "actual" {
		t.Errorf("ShellExpand = %q, want %q", got, "actual")
	}
}

func TestShellExpandEmptyUsesDefaultOnlyForColonDash(t *testing.T) {
	s := NewScope()
	s.Set("name", Entry{Value: ""})
	if got := ShellExpand("${name:-fallback}", s); got != "fallback" {
		t.Errorf("${name:-fallback} with empty name = %q, want fallback", got)
	}
	if got := ShellExpand("${name-fallback}", s); got != "" {
		t.Errorf("${name-fallback} with empty (but set) name = %q, want empty string", got)
	}
}

func TestScopeSetPreservesInsertionOrder(t *testing.T) {
	s := NewScope()
	s.Set("b", Entry{Value: "2"})
	s.Set("a", Entry{Value: "1"})
	s.Set("b", Entry{Value: "20"})
	if got, want := s.Names(), []string{"b", "a"}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	e, _ := s.Get("b")
	if e.Value != "20" {
		t.Errorf("re-Set did not update value in place: got %q", e.Value)
	}
}
