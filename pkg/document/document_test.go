package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMapKeepsDocumentOrder(t *testing.T) {
	m, err := ParseMap("zeta: 1\nalpha: two\nmid:\n  b: true\n  a: ~\n")
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := m.Get("zeta"); v != 1 {
		t.Errorf("zeta = %#v, want 1", v)
	}
	mid, _ := m.Get("mid")
	inner, ok := mid.(*Map)
	if !ok {
		t.Fatalf("mid is %T, want *Map", mid)
	}
	if diff := cmp.Diff([]string{"b", "a"}, inner.Keys()); diff != "" {
		t.Errorf("inner keys mismatch (-want +got):\n%s", diff)
	}
	if v, ok := inner.Get("a"); !ok || v != nil {
		t.Errorf("a = %#v (present=%v), want nil", v, ok)
	}
}

func TestParseMapEmpty(t *testing.T) {
	m, err := ParseMap("")
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestParseMapRejectsMalformed(t *testing.T) {
	for name, text := range map[string]string{
		"unclosed flow": "a: [1, 2\n",
		"bad indent":    "a:\n  b: 1\n c: 2\n",
		"scalar root":   "just a string",
		"sequence root": "- a\n- b\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMap(text)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParseResolvesAliasesAndMerges(t *testing.T) {
	text := `
base: &base
  id: 1
  name: shared
child:
  <<: *base
  name: own
ref: *base
`
	m, err := ParseMap(text)
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	child, _ := m.Get("child")
	cm := child.(*Map)
	if v, _ := cm.Get("id"); v != 1 {
		t.Errorf("child.id = %#v, want 1", v)
	}
	if v, _ := cm.Get("name"); v != "own" {
		t.Errorf("child.name = %#v, want own", v)
	}
	ref, _ := m.Get("ref")
	if v, _ := ref.(*Map).Get("name"); v != "shared" {
		t.Errorf("ref.name = %#v, want shared", v)
	}
}

func TestLowercase(t *testing.T) {
	m, err := ParseMap("Test-Scenario-1:\n  ID: X\n  Events:\n    Before_Start: 'Print(1)'\n")
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	low := Lowercase(m).(*Map)
	sc, ok := low.Get("test-scenario-1")
	if !ok {
		t.Fatalf("lowercased key missing; keys = %v", low.Keys())
	}
	scm := sc.(*Map)
	if v, _ := scm.Get("id"); v != "X" {
		t.Errorf("id value = %#v, want X (values are not lowercased)", v)
	}
	ev, _ := scm.Get("events")
	if v, _ := ev.(*Map).Get("before_start"); v != "Print(1)" {
		t.Errorf("event = %#v, want Print(1)", v)
	}
	// the source tree is left alone
	if !m.Has("Test-Scenario-1") {
		t.Error("Lowercase mutated its input")
	}
}

func TestLowercaseCollapsedKeysLaterWins(t *testing.T) {
	m, err := ParseMap("Name: first\nNAME: second\nid: 1\n")
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	low := Lowercase(m).(*Map)
	if diff := cmp.Diff([]string{"name", "id"}, low.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := low.Get("name"); v != "second" {
		t.Errorf("name = %#v, want second", v)
	}
}
