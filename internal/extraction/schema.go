package extraction

import (
	"reflect"
	"strings"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// FieldKind is the JSON kind a record field must have.
type FieldKind string

// Field kinds.
const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindArray   FieldKind = "array"
	KindObject  FieldKind = "object"
)

// Field describes one top-level or nested record field.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Nullable bool      `json:"nullable,omitempty"`
	// Items describes array elements or object members.
	Items []Field `json:"items,omitempty"`
}

// Schema returns the field descriptors of the record for c, derived from the
// record struct. Unknown has no schema and returns nil.
func Schema(c domain.Category) []Field {
	rec := newRecord(c)
	if rec == nil {
		return nil
	}
	return describe(reflect.TypeOf(rec).Elem())
}

func describe(t reflect.Type) []Field {
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		f := Field{
			Name:     name,
			Required: strings.Contains(sf.Tag.Get("validate"), "required"),
		}

		ft := sf.Type
		if ft.Kind() == reflect.Ptr {
			f.Nullable = true
			ft = ft.Elem()
		}
		f.Kind, f.Items = kindOf(ft)
		fields = append(fields, f)
	}
	return fields
}

func kindOf(t reflect.Type) (FieldKind, []Field) {
	switch t.Kind() {
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBoolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber, nil
	case reflect.Slice, reflect.Array:
		elem := t.Elem()
		if elem.Kind() == reflect.Struct {
			return KindArray, describe(elem)
		}
		k, _ := kindOf(elem)
		return KindArray, []Field{{Name: "[]", Kind: k}}
	case reflect.Struct:
		return KindObject, describe(t)
	default:
		return KindObject, nil
	}
}
