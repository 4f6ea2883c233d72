// Package mapper converts documents between the Firestore shape (camelCase
// keys, typed timestamps, nested objects) and the Supabase row shape
// (snake_case columns, ISO-8601 strings, JSONB blobs).
package mapper

import "github.com/rotisserie/eris"

// Mapping describes how one collection maps onto its relational table.
// Adding a collection to the migration means adding a table entry here, not a
// new code path.
type Mapping struct {
	Collection string
	Table      string

	// Fields lists explicit source→column renames. Anything absent falls back
	// to the generic camelCase→snake_case rule.
	Fields map[string]string

	// Columns is the allowed destination column set. A resolved name outside
	// it is routed into the extra_data catch-all instead of being dropped.
	Columns []string

	// Required lists columns the destination schema forbids as null. A record
	// missing one is skipped with a warning rather than written and retried.
	Required []string

	// TimeColumns hold ISO-8601 strings in the row shape and are re-wrapped
	// as typed timestamps when mapping back to the document shape.
	TimeColumns []string

	// WindowColumn is the timestamp column used for windowed reconciliation
	// reads of this table.
	WindowColumn string

	columnSet map[string]bool
	timeSet   map[string]bool
	reverse   map[string]string
}

func (m *Mapping) init() {
	m.columnSet = make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		m.columnSet[c] = true
	}
	m.timeSet = make(map[string]bool, len(m.TimeColumns))
	for _, c := range m.TimeColumns {
		m.timeSet[c] = true
	}
	m.reverse = make(map[string]string, len(m.Fields))
	for field, col := range m.Fields {
		m.reverse[col] = field
	}
}

// Resolve returns the destination column for a source field.
func (m *Mapping) Resolve(field string) string {
	if col, ok := m.Fields[field]; ok {
		return col
	}
	return CamelToSnake(field)
}

// ReverseResolve returns the source field for a destination column.
func (m *Mapping) ReverseResolve(col string) string {
	if field, ok := m.reverse[col]; ok {
		return field
	}
	return SnakeToCamel(col)
}

// HasColumn reports whether col is in the allowed destination set.
func (m *Mapping) HasColumn(col string) bool {
	return m.columnSet[col]
}

// IsTimeColumn reports whether col carries an ISO-8601 timestamp string.
func (m *Mapping) IsTimeColumn(col string) bool {
	return m.timeSet[col]
}

// Registry holds the fixed list of synchronized collections.
type Registry struct {
	mappings map[string]*Mapping
	order    []string
}

// NewRegistry builds the registry for every collection covered by the
// migration. The lists mirror the Supabase DDL; a column added there must be
// added here before the bridge will promote it out of extra_data.
func NewRegistry() *Registry {
	r := &Registry{mappings: make(map[string]*Mapping)}

	r.register(&Mapping{
		Collection: "orders",
		Table:      "orders",
		Fields: map[string]string{
			"branch": "branch_name",
		},
		Columns: []string{
			"id", "branch_id", "branch_name", "order_date", "status", "total",
			"orderer", "items", "delivery", "payment", "receipt_type",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns:  []string{"order_date", "created_at", "updated_at"},
		WindowColumn: "order_date",
	})

	r.register(&Mapping{
		Collection: "customers",
		Table:      "customers",
		Fields: map[string]string{
			"branch": "branch_name",
		},
		Columns: []string{
			"id", "name", "contact", "email", "branch_name", "company_name",
			"grade", "points", "total_spent", "order_count",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns: []string{"created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "products",
		Table:      "products",
		Columns: []string{
			"id", "name", "main_category", "mid_category", "price", "supplier",
			"stock", "size", "color", "branch_name", "code", "status",
			"created_at", "updated_at", "extra_data",
		},
		Required:    []string{"name"},
		TimeColumns: []string{"created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "materials",
		Table:      "materials",
		Columns: []string{
			"id", "name", "price", "supplier", "stock", "size", "color",
			"branch_name", "code", "created_at", "updated_at", "extra_data",
		},
		Required:    []string{"name"},
		TimeColumns: []string{"created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "branches",
		Table:      "branches",
		Columns: []string{
			"id", "name", "type", "address", "phone", "manager",
			"account_info", "delivery_areas", "surcharges",
			"created_at", "extra_data",
		},
		Required:    []string{"name"},
		TimeColumns: []string{"created_at"},
	})

	r.register(&Mapping{
		Collection: "employees",
		Table:      "employees",
		Columns: []string{
			"id", "email", "name", "role", "department", "position", "contact",
			"hire_date", "branch_name", "created_at", "extra_data",
		},
		TimeColumns: []string{"hire_date", "created_at"},
	})

	r.register(&Mapping{
		Collection: "expenseRequests",
		Table:      "expense_requests",
		Columns: []string{
			"id", "branch_id", "branch_name", "requester_id", "requester_name",
			"status", "total_amount", "items", "fiscal_month", "request_date",
			"approved_at", "paid_at", "created_at", "updated_at", "extra_data",
		},
		TimeColumns: []string{"request_date", "approved_at", "paid_at", "created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "budgets",
		Table:      "budgets",
		Columns: []string{
			"id", "name", "branch_id", "branch_name", "fiscal_month",
			"allocated_amount", "used_amount", "category",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns: []string{"created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "simpleExpenses",
		Table:      "simple_expenses",
		Columns: []string{
			"id", "branch_id", "branch_name", "expense_date", "amount",
			"category", "description", "payment_method", "receipt_url",
			"created_at", "extra_data",
		},
		TimeColumns:  []string{"expense_date", "created_at"},
		WindowColumn: "expense_date",
	})

	r.register(&Mapping{
		Collection: "checklists",
		Table:      "checklists",
		Columns: []string{
			"id", "branch_name", "date", "worker", "open_checked",
			"close_checked", "items", "notes",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns: []string{"date", "created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "stockHistory",
		Table:      "stock_history",
		Columns: []string{
			"id", "date", "type", "item_type", "item_name", "quantity",
			"from_stock", "to_stock", "resulting_stock", "branch_name",
			"operator", "price", "total_amount", "supplier",
			"created_at", "extra_data",
		},
		TimeColumns:  []string{"date", "created_at"},
		WindowColumn: "date",
	})

	r.register(&Mapping{
		Collection: "notifications",
		Table:      "notifications",
		Columns: []string{
			"id", "type", "title", "message", "branch_name", "role",
			"is_read", "read_at", "created_at", "extra_data",
		},
		TimeColumns: []string{"read_at", "created_at"},
	})

	r.register(&Mapping{
		Collection: "recipients",
		Table:      "recipients",
		Columns: []string{
			"id", "name", "contact", "address", "district", "branch_name",
			"order_count", "last_order_date", "order_ids",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns: []string{"last_order_date", "created_at", "updated_at"},
	})

	r.register(&Mapping{
		Collection: "deliveries",
		Table:      "deliveries",
		Columns: []string{
			"id", "order_id", "branch_name", "driver_name", "driver_contact",
			"status", "delivery_date", "address", "completed_at", "photo_url",
			"created_at", "updated_at", "extra_data",
		},
		TimeColumns:  []string{"delivery_date", "completed_at", "created_at", "updated_at"},
		WindowColumn: "delivery_date",
	})

	r.register(&Mapping{
		Collection: "systemSettings",
		Table:      "system_settings",
		Columns: []string{
			"id", "site_name", "delivery_fees", "point_rate", "auto_email",
			"updated_at", "extra_data",
		},
		TimeColumns: []string{"updated_at"},
	})

	return r
}

func (r *Registry) register(m *Mapping) {
	if m.WindowColumn == "" {
		m.WindowColumn = "created_at"
	}
	m.init()
	r.mappings[m.Collection] = m
	r.order = append(r.order, m.Collection)
}

// Get returns the mapping for a collection.
func (r *Registry) Get(collection string) (*Mapping, error) {
	m, ok := r.mappings[collection]
	if !ok {
		return nil, eris.Errorf("mapper: unknown collection %q", collection)
	}
	return m, nil
}

// All returns every mapping in registration order.
func (r *Registry) All() []*Mapping {
	out := make([]*Mapping, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.mappings[name])
	}
	return out
}

// Collections returns all collection names in registration order.
func (r *Registry) Collections() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
