// Handles the table file header: format version, reflected column metadata,
// and the revision stamp updated on every flush.

package moodb

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/maruel/ksid"
)

var errVersionRequired = errors.New("format version is required")

// formatVersion is the current version of the table file format.
const formatVersion = "1.0"

// columnType represents the type of a table column.
type columnType string

const (
	columnTypeText   columnType = "text"
	columnTypeNumber columnType = "number"
	columnTypeBool   columnType = "bool"
	columnTypeDate   columnType = "date"
	columnTypeBlob   columnType = "blob"
	columnTypeJSONB  columnType = "jsonb"
)

// column describes one record field in the header. Informational only:
// the decoded shape of a record is fixed by the Go type, not migrated.
type column struct {
	Name        string     `json:"name"`
	Type        columnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

// header is the first frame of a table file.
type header struct {
	Version  string   `json:"version"`
	Table    string   `json:"table"`
	Revision ksid.ID  `json:"revision"`
	Columns  []column `json:"columns,omitempty"`
}

// validate checks that the header is well-formed.
func (h *header) validate() error {
	if h.Version == "" {
		return errVersionRequired
	}
	if h.Version != formatVersion {
		return fmt.Errorf("unsupported format version %q", h.Version)
	}
	for i, col := range h.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("column %d: type is required", i)
		}
	}
	return nil
}

// schemaFromType extracts column definitions using JSON Schema reflection.
//
// It uses github.com/invopop/jsonschema to pick up field descriptions from
// `jsonschema:"description=..."` tags and required fields from the schema.
// Non-struct record types (strings, numbers, slices) yield no columns.
func schemaFromType[T any]() ([]column, error) {
	t := reflect.TypeFor[T]()

	structType := t
	if t.Kind() == reflect.Pointer {
		structType = t.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, nil
	}

	// Generate JSON Schema from type with inline properties (no $ref).
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(structType)

	required := make(map[string]bool)
	for _, name := range schema.Required {
		required[name] = true
	}

	var columns []column
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		name := pair.Key
		prop := pair.Value

		// Find the Go field for type inference.
		colType := columnTypeText
		for i := range structType.NumField() {
			field := structType.Field(i)
			if jsonFieldName(&field) == name {
				colType = goTypeToColumnType(field.Type)
				break
			}
		}

		columns = append(columns, column{
			Name:        name,
			Type:        colType,
			Required:    required[name],
			Description: prop.Description,
		})
	}

	return columns, nil
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	// Handle "name,omitempty" format.
	for i, c := range tag {
		if c == ',' {
			if i == 0 {
				return field.Name // ",omitempty" with no name, use Go field name
			}
			return tag[:i]
		}
	}
	return tag
}

// goTypeToColumnType maps Go types to header column types.
func goTypeToColumnType(t reflect.Type) columnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	// Check for time.Time first (before switch).
	if t == reflect.TypeFor[time.Time]() {
		return columnTypeDate
	}

	// Check for []byte (blob).
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return columnTypeBlob
	}

	switch t.Kind() {
	case reflect.String:
		return columnTypeText
	case reflect.Bool:
		return columnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return columnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map,
		reflect.Complex64, reflect.Complex128:
		return columnTypeJSONB
	case reflect.Invalid, reflect.Uintptr, reflect.Chan, reflect.Func,
		reflect.Interface, reflect.Pointer, reflect.UnsafePointer:
		// Unsupported types default to text.
		return columnTypeText
	}
	// Unreachable: the switch handles all reflect.Kind values.
	return columnTypeText
}
