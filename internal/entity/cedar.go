package entity

import (
	"github.com/cedar-policy/cedar-go/types"
)

// ToCedarUID converts a UID to the cedar-go wire type.
func ToCedarUID(u UID) types.EntityUID {
	return types.NewEntityUID(types.EntityType(u.Type), types.String(u.ID))
}

// FromCedarUID converts a cedar-go EntityUID back to a UID.
func FromCedarUID(u types.EntityUID) UID {
	return UID{Type: string(u.Type), ID: string(u.ID)}
}

// ToCedarValue converts an entity.Value to the cedar-go wire type used in
// entity attributes and request context.
func ToCedarValue(v Value) types.Value {
	switch t := v.(type) {
	case String:
		return types.String(t)
	case Long:
		return types.Long(t)
	case Bool:
		return types.Boolean(t)
	case EntityRef:
		return ToCedarUID(UID(t))
	case EntitySet:
		items := make([]types.Value, len(t))
		for i, uid := range t {
			items[i] = ToCedarUID(uid)
		}
		return types.NewSet(items...)
	case Set:
		items := make([]types.Value, len(t))
		for i, item := range t {
			items[i] = ToCedarValue(item)
		}
		return types.NewSet(items...)
	case Record:
		return ToCedarRecord(t)
	case IPAddr:
		cv, err := types.ParseIPAddr(t.String())
		if err != nil {
			return types.String(t.String())
		}
		return cv
	case Decimal:
		cv, err := types.ParseDecimal(t.String())
		if err != nil {
			return types.String(t.String())
		}
		return cv
	case Datetime:
		cv, err := types.ParseDatetime(timeRFC3339(t))
		if err != nil {
			return types.String(timeRFC3339(t))
		}
		return cv
	case Duration:
		cv, err := types.ParseDuration(durationLiteral(t))
		if err != nil {
			return types.String(durationLiteral(t))
		}
		return cv
	default:
		return types.String("")
	}
}

// ToCedarRecord converts a Record into the cedar-go Record type used for
// entity attributes and request context.
func ToCedarRecord(r Record) types.Record {
	m := make(types.RecordMap, len(r))
	for k, v := range r {
		m[types.String(k)] = ToCedarValue(v)
	}
	return types.NewRecord(m)
}

// ToCedarEntityMap converts an Entities collection into the cedar-go
// EntityMap the `cedar.Authorize` call requires.
func ToCedarEntityMap(es *Entities) types.EntityMap {
	all := es.All()
	m := make(types.EntityMap, len(all))
	for _, e := range all {
		uid := ToCedarUID(e.UID)
		parents := make([]types.EntityUID, len(e.Parents))
		for i, p := range e.Parents {
			parents[i] = ToCedarUID(p)
		}
		m[uid] = types.Entity{
			UID:        uid,
			Attributes: ToCedarRecord(e.Attrs),
			Parents:    types.NewEntityUIDSet(parents...),
		}
	}
	return m
}
