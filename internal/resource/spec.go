package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Fields holds kind-specific configuration values keyed by field name.
// List values are comma separated.
type Fields map[string]string

// Clone returns a copy of f. A nil map clones to an empty map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SplitList splits a comma separated field value, dropping empty entries.
func SplitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList encodes values as a list field value.
func JoinList(values ...string) string {
	return strings.Join(values, ",")
}

// normalizeList sorts list entries so equal sets compare equal.
func normalizeList(v string) string {
	items := SplitList(v)
	sort.Strings(items)
	return JoinList(items...)
}

// Spec is the desired state of a single resource. It is immutable: the field
// map is copied on construction and on every read.
type Spec struct {
	kind   Kind
	name   string
	fields Fields
}

// NewSpec creates a Spec of the given kind and name.
func NewSpec(kind Kind, name string, fields Fields) Spec {
	return Spec{
		kind:   kind,
		name:   name,
		fields: fields.Clone(),
	}
}

func (s Spec) Kind() Kind   { return s.kind }
func (s Spec) Name() string { return s.name }

// Field returns the value of a single field, or "" when unset.
func (s Spec) Field(name string) string {
	return s.fields[name]
}

// Fields returns a copy of all configured fields.
func (s Spec) Fields() Fields {
	return s.fields.Clone()
}

// With returns a copy of s with field set to value.
func (s Spec) With(field, value string) Spec {
	fields := s.fields.Clone()
	fields[field] = value
	return Spec{kind: s.kind, name: s.name, fields: fields}
}

// Key identifies the resource a spec describes.
func (s Spec) Key() string {
	return Key(s.kind, s.name)
}

func (s Spec) String() string {
	return fmt.Sprintf("%s %s", s.kind, s.name)
}

// Key formats the identity of a resource as kind/name.
func Key(kind Kind, name string) string {
	return string(kind) + "/" + name
}

// Handle is the provider-assigned identity of a created or discovered resource.
type Handle struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
	Ref  string `json:"ref" yaml:"ref"`
}

// IsZero reports whether h carries no reference.
func (h Handle) IsZero() bool {
	return h.Ref == ""
}

// Observed is a resource as reported by the provider.
type Observed struct {
	Handle Handle
	Fields Fields
}
