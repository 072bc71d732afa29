// Package patch applies dotted-key overrides (brief.price=497) to YAML-shaped documents.
package patch

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Document = map[string]any

type Patch struct {
	Set   map[string]any `json:"set,omitempty" yaml:"set,omitempty"`
	Unset []string       `json:"unset,omitempty" yaml:"unset,omitempty"`
}

func (p Patch) Empty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0
}

// Parse turns key=value assignments into a Patch. Values are decoded as YAML scalars or
// flow collections, so "997" is a number, "true" a bool and "[a, b]" a list.
func Parse(assignments []string, unset []string) (Patch, error) {
	out := Patch{Set: map[string]any{}}
	for _, a := range assignments {
		key, raw, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return Patch{}, errors.Errorf("invalid assignment %q (want key=value)", a)
		}
		var v any
		if strings.TrimSpace(raw) == "" {
			v = ""
		} else if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out.Set[key] = v
	}
	for _, k := range unset {
		if k = strings.TrimSpace(k); k != "" {
			out.Unset = append(out.Unset, k)
		}
	}
	return out, nil
}

func Apply(doc Document, p Patch) (Document, error) {
	if doc == nil {
		doc = Document{}
	}
	for _, key := range p.Unset {
		if err := unsetDotted(doc, key); err != nil {
			return nil, err
		}
	}
	for key, value := range p.Set {
		if err := setDotted(doc, key, value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// ApplyTo round-trips target through YAML so a patch can address its yaml field names.
// target must be a non-nil pointer.
func ApplyTo(target any, p Patch) error {
	if p.Empty() {
		return nil
	}
	b, err := yaml.Marshal(target)
	if err != nil {
		return errors.Wrap(err, "encode patch target")
	}
	doc := Document{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return errors.Wrap(err, "decode patch target")
	}
	doc, err = Apply(doc, p)
	if err != nil {
		return err
	}
	b, err = yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode patched document")
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Errorf("patch target must be a non-nil pointer, got %T", target)
	}
	// Decode into a fresh value so unset keys really become zero.
	fresh := reflect.New(rv.Elem().Type())
	if err := yaml.Unmarshal(b, fresh.Interface()); err != nil {
		return errors.Wrap(err, "apply patched document")
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func Merge(a, b Patch) Patch {
	out := Patch{
		Set:   map[string]any{},
		Unset: []string{},
	}
	for k, v := range a.Set {
		out.Set[k] = v
	}
	for k, v := range b.Set {
		out.Set[k] = v
	}
	seen := map[string]struct{}{}
	for _, k := range append(append([]string{}, a.Unset...), b.Unset...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Unset = append(out.Unset, k)
	}
	return out
}

func setDotted(doc Document, dotted string, value any) error {
	parts := splitDotted(dotted)
	if len(parts) == 0 {
		return errors.Errorf("empty dotted key")
	}

	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		asMap, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("cannot set %q: %q is not an object", dotted, part)
		}
		current = asMap
	}

	current[parts[len(parts)-1]] = value
	return nil
}

func unsetDotted(doc Document, dotted string) error {
	parts := splitDotted(dotted)
	if len(parts) == 0 {
		return errors.Errorf("empty dotted key")
	}

	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			return nil
		}
		asMap, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("cannot unset %q: %q is not an object", dotted, part)
		}
		current = asMap
	}
	delete(current, parts[len(parts)-1])
	return nil
}

func splitDotted(dotted string) []string {
	raw := strings.Split(dotted, ".")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
