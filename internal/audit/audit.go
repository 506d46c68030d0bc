// Package audit emits field-level change-log rows for tracked entities on
// both storage binds. It is installed as a gorm plugin per bind; the two
// installations are fully isolated from each other.
package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// InsertSentinel marks the "no previous value" side of an insert row.
const InsertSentinel = "∅"

// TruncateAt bounds logged values; longer values get the "…[+N]" suffix.
const TruncateAt = 500

// Audited marks entity types whose inserts and updates produce change-log
// rows. The returned id is the parent id stored on each row.
type Audited interface {
	AuditParentID() uint
}

// Stringify renders a column value for the change log. Nil values map to the
// insert sentinel. Values longer than TruncateAt runes are truncated with a
// suffix carrying the dropped length.
func Stringify(v interface{}) string {
	if v == nil {
		return InsertSentinel
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return InsertSentinel
		}
		return Stringify(rv.Elem().Interface())
	}
	var rendered string
	switch val := v.(type) {
	case string:
		rendered = val
	case time.Time:
		rendered = val.Format(time.RFC3339)
	case fmt.Stringer:
		rendered = val.String()
	default:
		switch rv.Kind() {
		case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
			raw, err := json.Marshal(v)
			if err != nil {
				rendered = fmt.Sprintf("%v", v)
			} else {
				rendered = string(raw)
			}
		default:
			rendered = fmt.Sprintf("%v", v)
		}
	}
	return Truncate(rendered)
}

// Truncate applies the change-log length bound to an already rendered value.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= TruncateAt {
		return s
	}
	dropped := len(runes) - TruncateAt
	return fmt.Sprintf("%s …[+%d]", string(runes[:TruncateAt]), dropped)
}
