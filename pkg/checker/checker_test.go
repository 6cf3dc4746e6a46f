package checker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/padawan/pkg/fragment"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func TestCheckDocumentValid(t *testing.T) {
	c := New()
	passed, report := c.CheckDocument(readFixture(t, "valid.jedi"))
	if !passed || report != "" {
		t.Fatalf("CheckDocument = (%v, %q), want (true, \"\")", passed, report)
	}
}

func TestCheckDocumentIsIdempotent(t *testing.T) {
	c := New()
	text := readFixture(t, "broken.jedi")
	_, first := c.CheckDocument(text)
	_, second := c.CheckDocument(text)
	if first != second {
		t.Errorf("reports differ between runs:\n%s\n---\n%s", first, second)
	}
}

func TestDiagnoseBrokenDocument(t *testing.T) {
	c := New()
	diags := c.Diagnose(readFixture(t, "broken.jedi"))

	type finding struct {
		Kind Kind
		Path string
		Tag  string
	}
	var got []finding
	for _, d := range diags {
		got = append(got, finding{d.Kind, d.Path, d.Tag})
	}
	want := []finding{
		{SchemaViolation, "test-scenario-1", "id"},
		{FragmentSyntaxError, "test-scenario-1:pre-req", ""},
		{FragmentSyntaxError, "test-scenario-1:events:after_finish", ""},
		{SchemaViolation, "test-scenario-1:test-case-1", "name"},
		{MissingAssertion, "test-scenario-1:test-case-1:test-condition-1:validate", ""},
		{SchemaViolation, "test-scenario-1:test-case-1:test-condition-2", "id"},
		{SchemaViolation, "test-scenario-1:test-case-1:test-condition-2", "test"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}

	report := Report(diags)
	for _, line := range []string{
		"\ntest-scenario-1: Missing tag id",
		"\ntest-scenario-1:test-case-1: Missing tag name",
		"\ntest-scenario-1:test-case-1:test-condition-1:validate: Missing assertion",
		"\ntest-scenario-1:test-case-1:test-condition-2: Missing tag id",
		`File "test-scenario-1:pre-req", line 1`,
		`File "test-scenario-1:events:after_finish", line 1`,
	} {
		if !strings.Contains(report, line) {
			t.Errorf("report missing %q:\n%s", line, report)
		}
	}
}

func TestCheckDocumentReportFormat(t *testing.T) {
	text := `
test-scenario-1:
  name: s
  test-case-1:
    id: c
    test-condition-1:
      id: x
      name: y
      validate: assert_true(ok)
`
	passed, report := New().CheckDocument(text)
	want := "\ntest-scenario-1: Missing tag id" +
		"\ntest-scenario-1:test-case-1: Missing tag name" +
		"\ntest-scenario-1:test-case-1:test-condition-1: Missing tag test"
	if passed {
		t.Error("passed = true, want false")
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckDocumentCaseWithoutConditions(t *testing.T) {
	text := `
test-scenario-1:
  id: s1
  name: scenario
  test-case-1:
    id: c1
    name: case
`
	passed, report := New().CheckDocument(text)
	if passed {
		t.Error("passed = true, want false")
	}
	if !strings.Contains(report, "test-scenario-1:test-case-1: Missing tag test-condition-1") {
		t.Errorf("report = %q", report)
	}
}

func TestCheckDocumentEmpty(t *testing.T) {
	passed, report := New().CheckDocument("")
	if passed || report != "\nMissing tag test-scenario-1" {
		t.Errorf("CheckDocument(\"\") = (%v, %q)", passed, report)
	}
}

// The expected range of numbered children comes from how many there are,
// not from the numbers used. A gap makes the validator report the number it
// expected and skip the child that is actually there.
func TestCheckDocumentCountsChildrenNotNumbers(t *testing.T) {
	text := `
test-scenario-1:
  id: s1
  name: first
  test-case-1:
    id: c1
    name: case
    test-condition-1: {id: a, name: b, test: x = 1, validate: "assert_eq(x, 1)"}
test-scenario-3:
  name: third, never inspected
`
	_, report := New().CheckDocument(text)
	if report != "\nMissing tag test-scenario-2" {
		t.Errorf("report = %q, want only the missing test-scenario-2", report)
	}

	// Unrelated top-level keys count too.
	text = `
metadata: anything
test-scenario-1:
  id: s1
  name: first
  test-case-1:
    id: c1
    name: case
    test-condition-1: {id: a, name: b, test: x = 1, validate: "assert_eq(x, 1)"}
`
	_, report = New().CheckDocument(text)
	if report != "\nMissing tag test-scenario-2" {
		t.Errorf("report = %q, want only the missing test-scenario-2", report)
	}

	// Child keys are matched by substring.
	text = `
test-scenario-1:
  id: s1
  name: first
  old-test-case-7: ignored name but counted
  test-case-1:
    id: c1
    name: case
    test-condition-1: {id: a, name: b, test: x = 1, validate: "assert_eq(x, 1)"}
`
	_, report = New().CheckDocument(text)
	if report != "\ntest-scenario-1: Missing tag test-case-2" {
		t.Errorf("report = %q", report)
	}
}

func TestCheckDocumentTagsAreCaseInsensitive(t *testing.T) {
	text := `
TEST-SCENARIO-1:
  ID: s1
  NAME: upper
  TEST-CASE-1:
    Id: c1
    Name: mixed
    Test-Condition-1:
      iD: a
      nAmE: b
      TEST: x = 1
      VALIDATE: assert_eq(x, 1)
`
	passed, report := New().CheckDocument(text)
	if !passed {
		t.Errorf("report = %q, want pass", report)
	}
}

func TestCheckDocumentInvalidYAML(t *testing.T) {
	for _, text := range []string{"a: [1, 2\n", "- just\n- a list\n", "plain scalar"} {
		passed, report := New().CheckDocument(text)
		if passed || report != InvalidStructure {
			t.Errorf("CheckDocument(%q) = (%v, %q), want (false, %q)", text, passed, report, InvalidStructure)
		}
	}
}

func TestCheckDocumentAssertionIndependentOfSyntax(t *testing.T) {
	text := `
test-scenario-1:
  id: s1
  name: n
  test-case-1:
    id: c1
    name: n
    test-condition-1:
      id: a
      name: b
      test: x = 1
      validate: "check(x"
`
	diags := New().Diagnose(text)
	var kinds []Kind
	for _, d := range diags {
		kinds = append(kinds, d.Kind)
	}
	if diff := cmp.Diff([]Kind{FragmentSyntaxError, MissingAssertion}, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	if diags[1].Path != "test-scenario-1:test-case-1:test-condition-1:validate" {
		t.Errorf("assertion path = %q", diags[1].Path)
	}
}

func TestCheckDocumentNonStringFragments(t *testing.T) {
	text := `
test-scenario-1:
  id: s1
  name: n
  pre-req: 42
  test-case-1: scalar case
`
	diags := New().Diagnose(text)
	if len(diags) == 0 {
		t.Fatal("no findings")
	}
	if diags[0].Kind != FragmentSyntaxError || diags[0].Path != "test-scenario-1:pre-req" {
		t.Errorf("first finding = %+v", diags[0])
	}
	if !strings.Contains(diags[0].Message, "got int") {
		t.Errorf("message = %q", diags[0].Message)
	}
	report := Report(diags)
	for _, tag := range []string{"id", "name", "test-condition-1"} {
		if !strings.Contains(report, "test-scenario-1:test-case-1: Missing tag "+tag) {
			t.Errorf("report missing tag %s:\n%s", tag, report)
		}
	}
}

func TestCheckFragment(t *testing.T) {
	c := New()
	if got := c.CheckFragment("ok.star", "def f():\n pass"); got != "" {
		t.Errorf("valid fragment: got %q", got)
	}
	got := c.CheckFragment("bad.star", "def f(:\n pass")
	if got == "" {
		t.Fatal("syntax error not reported")
	}
	if !strings.HasPrefix(got, "\n") || !strings.Contains(got, "SyntaxError") || !strings.Contains(got, "bad.star") {
		t.Errorf("error = %q", got)
	}
}

func TestCheckDispatchesOnSuffix(t *testing.T) {
	c := New()

	passed, report := c.Check("suite/script.star", readFixture(t, "script.star"))
	if !passed {
		t.Errorf("script.star: %s", report)
	}
	passed, report = c.Check("x.py", "def f(:\n")
	if passed || !strings.Contains(report, `File "x.py"`) {
		t.Errorf("x.py = (%v, %q)", passed, report)
	}
	passed, _ = c.Check("suite/login.jedi", readFixture(t, "valid.jedi"))
	if !passed {
		t.Error("valid.jedi failed")
	}
	passed, report = c.Check("suite/login.padawan", "a: [1, 2\n")
	if passed || report != InvalidStructure {
		t.Errorf("login.padawan = (%v, %q)", passed, report)
	}
	passed, report = c.Check("README.md", "def f(:")
	if !passed || report != "" {
		t.Errorf("README.md = (%v, %q), want unchecked pass", passed, report)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]FileKind{
		"a.py":              KindFragment,
		"dir.v2/a.star":     KindFragment,
		"tests/login.jedi":  KindDocument,
		"x.padawan":         KindDocument,
		"x.yaml":            KindUnchecked,
		"jedi":              KindDocument,
		"Makefile":          KindUnchecked,
		"archive.jedi.bak":  KindUnchecked,
		"/tmp/suite/a.JEDI": KindUnchecked,
	}
	for path, want := range cases {
		if got := Classify(path); got != want {
			t.Errorf("Classify(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCheckWithExprDialect(t *testing.T) {
	c := New(WithInterpreter(fragment.MustNew(fragment.DialectExpr)))
	text := `
test-scenario-1:
  id: s1
  name: n
  test-case-1:
    id: c1
    name: n
    test-condition-1:
      id: a
      name: b
      test: len(items) > 0
      validate: "assert == true && ("
`
	diags := c.Diagnose(text)
	if len(diags) != 1 || diags[0].Kind != FragmentSyntaxError {
		t.Fatalf("diags = %v", diags)
	}
}
