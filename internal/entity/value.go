// Package entity provides the in-process representation of Cedar entities,
// attribute values, and entity identifiers used throughout cedarguard. It
// mirrors the shape of github.com/cedar-policy/cedar-go's types package;
// the conversion to cedar-go values lives in cedar.go in this package and
// is called by the engine adapter at evaluation time.
package entity

import (
	"fmt"
	"net/netip"
	"time"
)

// Value is a Cedar attribute value. It is a closed sum type: only the
// concrete types defined in this file implement it.
type Value interface {
	cedarValue()
}

// String is a Cedar string value.
type String string

func (String) cedarValue() {}

// Long is a Cedar signed 64-bit integer value.
type Long int64

func (Long) cedarValue() {}

// Bool is a Cedar boolean value.
type Bool bool

func (Bool) cedarValue() {}

// EntityRef is a reference to another entity, used as an attribute value
// (e.g. `resource.owner`).
type EntityRef UID

func (EntityRef) cedarValue() {}

// EntitySet is an unordered collection of entity references, used for
// attributes like `resource.viewers`.
type EntitySet []UID

func (EntitySet) cedarValue() {}

// Set is a Cedar set of arbitrary values.
type Set []Value

func (Set) cedarValue() {}

// Record is a Cedar record: a string-keyed map of values.
type Record map[string]Value

func (Record) cedarValue() {}

// IPAddr is the `ipaddr` Cedar extension value, built on netip so both IPv4
// and IPv6 literals and CIDR ranges are represented exactly.
type IPAddr struct {
	Addr   netip.Addr
	Prefix netip.Prefix
	isCIDR bool
}

func (IPAddr) cedarValue() {}

// ParseIPAddr parses an IP literal or CIDR range as accepted by Cedar's
// `ip()` extension constructor.
func ParseIPAddr(s string) (IPAddr, error) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return IPAddr{Addr: prefix.Addr(), Prefix: prefix, isCIDR: true}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPAddr{}, fmt.Errorf("entity: invalid ip address %q: %w", s, err)
	}
	return IPAddr{Addr: addr}, nil
}

func (a IPAddr) String() string {
	if a.isCIDR {
		return a.Prefix.String()
	}
	return a.Addr.String()
}

// Decimal is the `decimal` Cedar extension value, stored as the raw
// literal string with no fixed scale or precision.
type Decimal struct {
	raw string
}

func (Decimal) cedarValue() {}

// ParseDecimal wraps a decimal literal as text. It rejects only an empty
// literal; digits and scale are not checked.
func ParseDecimal(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, fmt.Errorf("entity: empty decimal literal")
	}
	return Decimal{raw: s}, nil
}

func (d Decimal) String() string { return d.raw }

// Datetime is the `datetime` Cedar extension value.
type Datetime time.Time

func (Datetime) cedarValue() {}

// Duration is the `duration` Cedar extension value.
type Duration time.Duration

func (Duration) cedarValue() {}
