package entity

import (
	"fmt"
	"strings"
)

// UID identifies a Cedar entity by its type and unique id, e.g.
// `Photo::"vacation.jpg"` or `User::"alice"`.
type UID struct {
	Type string
	ID   string
}

// NewUID builds a UID from a type name and id.
func NewUID(typ, id string) UID {
	return UID{Type: typ, ID: id}
}

// String renders the UID in Cedar's `Type::"id"` syntax, escaping embedded
// quotes and backslashes in id.
func (u UID) String() string {
	var b strings.Builder
	b.WriteString(u.Type)
	b.WriteString(`::"`)
	for _, r := range u.ID {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// ParseUID parses the `Type::"id"` syntax produced by String, including
// multi-segment namespaced types (`Namespace::Type::"id"`) and escaped
// quotes/backslashes within the id.
func ParseUID(s string) (UID, error) {
	idx := strings.LastIndex(s, `::"`)
	if idx < 0 || !strings.HasSuffix(s, `"`) {
		return UID{}, fmt.Errorf("entity: malformed entity uid %q", s)
	}
	typ := s[:idx]
	if typ == "" {
		return UID{}, fmt.Errorf("entity: malformed entity uid %q: missing type", s)
	}
	rawID := s[idx+3 : len(s)-1]

	var b strings.Builder
	escaped := false
	for _, r := range rawID {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '"' {
			return UID{}, fmt.Errorf("entity: malformed entity uid %q: unescaped quote in id", s)
		}
		b.WriteRune(r)
	}
	if escaped {
		return UID{}, fmt.Errorf("entity: malformed entity uid %q: trailing escape", s)
	}

	return UID{Type: typ, ID: b.String()}, nil
}

// IsZero reports whether u is the zero-value UID.
func (u UID) IsZero() bool {
	return u.Type == "" && u.ID == ""
}
