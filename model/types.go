package model

import (
	"fmt"
	"strings"
)

// TypeRepresentation identifies the type of an identifier or a payload.
// An empty AssemblyVersion means the representation is unversioned.
type TypeRepresentation struct {
	Namespace       string `msgpack:"ns" json:"namespace"`
	Name            string `msgpack:"name" json:"name"`
	AssemblyName    string `msgpack:"asm" json:"assemblyName"`
	AssemblyVersion string `msgpack:"ver,omitempty" json:"assemblyVersion,omitempty"`
}

// IsZero reports whether no field is set.
func (t TypeRepresentation) IsZero() bool {
	return t == TypeRepresentation{}
}

// IsVersioned reports whether the representation carries a version.
func (t TypeRepresentation) IsVersioned() bool {
	return t.AssemblyVersion != ""
}

// RemoveVersion returns a copy without the assembly version.
func (t TypeRepresentation) RemoveVersion() TypeRepresentation {
	t.AssemblyVersion = ""
	return t
}

// FullName returns Namespace.Name (or Name when there is no namespace).
func (t TypeRepresentation) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// String renders "Namespace.Name, Assembly, Version=x". Parse with
// ParseTypeRepresentation.
func (t TypeRepresentation) String() string {
	var b strings.Builder
	b.WriteString(t.FullName())
	if t.AssemblyName != "" {
		b.WriteString(", ")
		b.WriteString(t.AssemblyName)
	}
	if t.AssemblyVersion != "" {
		b.WriteString(", Version=")
		b.WriteString(t.AssemblyVersion)
	}
	return b.String()
}

// ParseTypeRepresentation parses the format produced by String. The last dot
// of the first segment separates namespace from name.
func ParseTypeRepresentation(s string) (TypeRepresentation, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 0 || parts[0] == "" || len(parts) > 3 {
		return TypeRepresentation{}, NewArgumentError("type", "cannot parse %q", s)
	}

	var t TypeRepresentation
	if i := strings.LastIndex(parts[0], "."); i >= 0 {
		t.Namespace = parts[0][:i]
		t.Name = parts[0][i+1:]
	} else {
		t.Name = parts[0]
	}
	if t.Name == "" {
		return TypeRepresentation{}, NewArgumentError("type", "missing type name in %q", s)
	}

	for _, p := range parts[1:] {
		if v, ok := strings.CutPrefix(p, "Version="); ok {
			t.AssemblyVersion = v
			continue
		}
		if t.AssemblyName != "" {
			return TypeRepresentation{}, NewArgumentError("type", "unexpected segment %q in %q", p, s)
		}
		t.AssemblyName = p
	}
	return t, nil
}

// TypeRepresentationWithAndWithoutVersion carries both forms so filters can
// compare either without recomputing.
type TypeRepresentationWithAndWithoutVersion struct {
	WithVersion    TypeRepresentation `msgpack:"with" json:"withVersion"`
	WithoutVersion TypeRepresentation `msgpack:"without" json:"withoutVersion"`
}

// NewTypeRepresentationWithAndWithoutVersion derives the unversioned form.
func NewTypeRepresentationWithAndWithoutVersion(t TypeRepresentation) TypeRepresentationWithAndWithoutVersion {
	return TypeRepresentationWithAndWithoutVersion{
		WithVersion:    t,
		WithoutVersion: t.RemoveVersion(),
	}
}

// IsZero reports whether the versioned form is unset.
func (t TypeRepresentationWithAndWithoutVersion) IsZero() bool {
	return t.WithVersion.IsZero()
}

// NamedValue is one tag. Names may repeat within a tag list; matching is by
// name and value together.
type NamedValue struct {
	Name  string `msgpack:"n" json:"name"`
	Value string `msgpack:"v" json:"value"`
}

func (nv NamedValue) String() string {
	return fmt.Sprintf("%s=%s", nv.Name, nv.Value)
}

// Tags builds a tag list from alternating name/value arguments. A trailing
// name without a value gets an empty value.
func Tags(pairs ...string) []NamedValue {
	tags := make([]NamedValue, 0, (len(pairs)+1)/2)
	for i := 0; i < len(pairs); i += 2 {
		nv := NamedValue{Name: pairs[i]}
		if i+1 < len(pairs) {
			nv.Value = pairs[i+1]
		}
		tags = append(tags, nv)
	}
	return tags
}
