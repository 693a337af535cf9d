package live

import (
	"reflect"
	"strings"

	"github.com/HendryAvila/tracky/internal/project"
)

// FieldChange is one differing field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Changes maps JSON field names to their differences.
type Changes map[string]FieldChange

// Diff reports the fields that differ between old and cur.
//
// Only keys present on old are compared and updated_at is always skipped. A
// key is absent when its field is tagged omitempty and holds the zero value;
// a key cleared on cur stays present, so unassigning reports the old value.
// Comparison is shallow: scalars compare by value, slices and maps
// by identity, so an appended note reports the whole notes array. Returns nil
// when old is nil or nothing differs.
func Diff(old, cur project.Entity) Changes {
	if old == nil || cur == nil {
		return nil
	}

	oldFields := make(map[string]reflect.Value)
	for _, f := range presentFields(old, true) {
		oldFields[f.name] = f.value
	}

	changes := Changes{}
	for _, f := range presentFields(cur, false) {
		if f.name == "updated_at" {
			continue
		}
		ov, ok := oldFields[f.name]
		if !ok {
			continue
		}
		if !sameValue(ov, f.value) {
			changes[f.name] = FieldChange{From: ov.Interface(), To: f.value.Interface()}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

type namedValue struct {
	name  string
	value reflect.Value
}

// presentFields lists the JSON fields of e in declaration order. With
// omitEmpty set, zero omitempty fields are left out as JSON encoding would.
func presentFields(e project.Entity, omitEmpty bool) []namedValue {
	v := reflect.ValueOf(e)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	fields := make([]namedValue, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fv := v.Field(i)
		if omitEmpty && hasOption(opts, "omitempty") && fv.IsZero() {
			continue
		}
		fields = append(fields, namedValue{name: name, value: fv})
	}
	return fields
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}

func sameValue(a, b reflect.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case reflect.Slice, reflect.Map:
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	default:
		if !a.Type().Comparable() || a.Type() != b.Type() {
			return false
		}
		return a.Interface() == b.Interface()
	}
}
