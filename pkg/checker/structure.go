package checker

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/padawan/pkg/document"
	"github.com/ormasoftchile/padawan/pkg/fragment"
)

// Tag names of the test document schema.
const (
	scenarioPrefix  = "test-scenario-"
	casePrefix      = "test-case-"
	conditionPrefix = "test-condition-"

	tagID       = "id"
	tagName     = "name"
	tagPreReq   = "pre-req"
	tagPostReq  = "post-req"
	tagEvents   = "events"
	tagTest     = "test"
	tagValidate = "validate"

	assertionMarker = "assert"
)

// walker accumulates findings while descending a normalised document.
type walker struct {
	interp fragment.Interpreter
	diags  []*Diagnostic
}

func (w *walker) missing(path []string, tag string) {
	w.diags = append(w.diags, &Diagnostic{Kind: SchemaViolation, Path: join(path), Tag: tag})
}

// root checks test-scenario-1..K where K is the number of keys at the top
// level, whatever they are named, and at least one. A misnumbered scenario
// is therefore reported as missing under the number it should have had.
func (w *walker) root(doc *document.Map) {
	for i := 1; i <= max(doc.Len(), 1); i++ {
		tag := fmt.Sprintf("%s%d", scenarioPrefix, i)
		if v, ok := doc.Get(tag); ok {
			w.scenario([]string{tag}, asMap(v))
		} else {
			w.missing(nil, tag)
		}
	}
}

func (w *walker) scenario(path []string, node *document.Map) {
	w.requireTags(path, node, tagID, tagName)
	for _, tag := range []string{tagPreReq, tagPostReq} {
		if v, ok := node.Get(tag); ok {
			w.fragment(extend(path, tag), v)
		}
	}
	w.events(path, node)
	w.children(path, node, casePrefix, w.testCase)
}

func (w *walker) testCase(path []string, node *document.Map) {
	w.requireTags(path, node, tagID, tagName)
	w.events(path, node)
	w.children(path, node, conditionPrefix, w.condition)
}

func (w *walker) condition(path []string, node *document.Map) {
	w.requireTags(path, node, tagID, tagName, tagTest, tagValidate)
	w.events(path, node)
	for _, tag := range []string{tagTest, tagValidate} {
		if v, ok := node.Get(tag); ok {
			w.fragment(extend(path, tag), v)
		}
	}
	if v, ok := node.Get(tagValidate); ok {
		if src, isString := v.(string); !isString || !strings.Contains(src, assertionMarker) {
			w.diags = append(w.diags, &Diagnostic{Kind: MissingAssertion, Path: join(extend(path, tagValidate))})
		}
	}
}

func (w *walker) requireTags(path []string, node *document.Map, tags ...string) {
	for _, tag := range tags {
		if !node.Has(tag) {
			w.missing(path, tag)
		}
	}
}

// events compiles every named event handler of node.
func (w *walker) events(path []string, node *document.Map) {
	v, ok := node.Get(tagEvents)
	if !ok {
		return
	}
	events, ok := v.(*document.Map)
	if !ok {
		return
	}
	for _, e := range events.Entries() {
		w.fragment(extend(path, tagEvents, e.Key), e.Value)
	}
}

// children counts the keys of node containing prefix and then expects
// prefix1..prefixN to be present, descending into each one found. Every
// node needs at least one child, so N is never below 1.
func (w *walker) children(path []string, node *document.Map, prefix string, visit func([]string, *document.Map)) {
	n := 0
	for _, k := range node.Keys() {
		if strings.Contains(k, prefix) {
			n++
		}
	}
	for i := 1; i <= max(n, 1); i++ {
		tag := fmt.Sprintf("%s%d", prefix, i)
		if v, ok := node.Get(tag); ok {
			visit(extend(path, tag), asMap(v))
		} else {
			w.missing(path, tag)
		}
	}
}

func (w *walker) fragment(path []string, v any) {
	name := join(path)
	src, ok := v.(string)
	if !ok {
		w.diags = append(w.diags, &Diagnostic{
			Kind:    FragmentSyntaxError,
			Path:    name,
			Message: fmt.Sprintf("  File \"%s\"\nTypeError: fragment must be a string, got %s", name, typeName(v)),
		})
		return
	}
	if err := w.interp.Compile(name, src); err != nil {
		w.diags = append(w.diags, &Diagnostic{Kind: FragmentSyntaxError, Path: name, Message: err.Error()})
	}
}

// asMap treats anything that is not a mapping as an empty one, so a node
// written as a scalar reports all its required tags missing.
func asMap(v any) *document.Map {
	if m, ok := v.(*document.Map); ok {
		return m
	}
	return document.NewMap()
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *document.Map:
		return "mapping"
	case []any:
		return "sequence"
	case bool:
		return "bool"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func join(path []string) string { return strings.Join(path, ":") }

// extend returns path+tags without aliasing path's backing array.
func extend(path []string, tags ...string) []string {
	out := make([]string, 0, len(path)+len(tags))
	out = append(out, path...)
	return append(out, tags...)
}
