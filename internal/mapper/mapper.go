package mapper

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/lilymagnc/lilysync/internal/docstore"
)

// extraDataField is the document-side catch-all bucket name; extraDataColumn
// is its relational counterpart.
const (
	extraDataField  = "extraData"
	extraDataColumn = "extra_data"
)

// MapEntityToRow converts one document into an upsert-safe row. Every source
// field lands either in an explicit column or in extra_data; nothing is
// dropped. The document key becomes the id column.
func MapEntityToRow(m *Mapping, doc docstore.Document) map[string]any {
	row := make(map[string]any, len(doc.Fields)+2)
	extra := make(map[string]any)

	// Pre-existing catch-all content from the source merges in first so that
	// newly computed fields win on key collision.
	if n, ok := doc.Fields[extraDataField].(docstore.Nested); ok {
		for k, v := range n {
			extra[k] = toRowValue(v)
		}
	}

	for name, val := range doc.Fields {
		if name == extraDataField {
			continue
		}
		col := m.Resolve(name)
		v := toRowValue(val)
		if m.HasColumn(col) && col != extraDataColumn {
			row[col] = v
		} else {
			extra[col] = v
		}
	}

	row["id"] = doc.ID
	if len(extra) > 0 {
		row[extraDataColumn] = extra
	}
	return row
}

// MapRowToEntity converts a relational row back into the document shape, for
// consumers still written against the Firestore model. Known timestamp columns
// come back as typed timestamps so legacy to-date call sites keep working.
func MapRowToEntity(m *Mapping, row map[string]any) docstore.Document {
	doc := docstore.Document{Fields: make(map[string]Value, len(row))}

	// Catch-all keys first; explicit columns overwrite on collision.
	if raw, ok := row[extraDataColumn]; ok {
		if mm, ok := raw.(map[string]any); ok {
			for k, v := range mm {
				doc.Fields[SnakeToCamel(k)] = fromRowValue(v, false)
			}
		}
	}

	for col, v := range row {
		switch col {
		case "id":
			doc.ID = fmt.Sprint(v)
		case extraDataColumn:
			// handled above
		default:
			doc.Fields[m.ReverseResolve(col)] = fromRowValue(v, m.IsTimeColumn(col))
		}
	}
	return doc
}

// Value aliases the docstore value union for callers of MapRowToEntity.
type Value = docstore.Value

// MissingRequired returns the first required column absent or empty in the
// row, and whether one was found.
func MissingRequired(m *Mapping, row map[string]any) (string, bool) {
	for _, col := range m.Required {
		v, ok := row[col]
		if !ok || v == nil {
			return col, true
		}
		if s, ok := v.(string); ok && s == "" {
			return col, true
		}
	}
	return "", false
}

// toRowValue converts a typed document value into its relational encoding:
// timestamps become ISO-8601 strings, nested objects and arrays become plain
// maps/slices bound for JSONB, scalars pass through untouched.
func toRowValue(v docstore.Value) any {
	switch t := v.(type) {
	case docstore.Scalar:
		return t.V
	case docstore.Timestamp:
		return t.T.UTC().Format(time.RFC3339Nano)
	case docstore.Nested:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = toRowValue(e)
		}
		return out
	case docstore.Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toRowValue(e)
		}
		return out
	default:
		return nil
	}
}

// fromRowValue converts a relational value back into the typed union. isTime
// marks columns whose ISO strings should be re-wrapped as timestamps.
func fromRowValue(v any, isTime bool) docstore.Value {
	switch t := v.(type) {
	case time.Time:
		return docstore.Timestamp{T: t}
	case string:
		if isTime {
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return docstore.Timestamp{T: ts}
			}
		}
		return docstore.Scalar{V: t}
	case map[string]any:
		out := make(docstore.Nested, len(t))
		for k, e := range t {
			out[k] = fromRowValue(e, false)
		}
		return out
	case []any:
		out := make(docstore.Array, len(t))
		for i, e := range t {
			out[i] = fromRowValue(e, false)
		}
		return out
	default:
		return docstore.Scalar{V: v}
	}
}

// CamelToSnake transliterates a camelCase field name into snake_case.
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Insert a boundary before an upper rune unless it continues an
			// acronym run (e.g. receiptURL → receipt_url, not receipt_u_r_l).
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnakeToCamel transliterates a snake_case column name into camelCase.
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
