package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoversAllCollections(t *testing.T) {
	reg := NewRegistry()
	cols := reg.Collections()
	assert.Len(t, cols, 15)
	assert.Equal(t, "orders", cols[0], "registration order is stable")
	assert.Len(t, reg.All(), 15)
}

func TestRegistry_Get_Unknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("bouquets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestMapping_Invariants(t *testing.T) {
	reg := NewRegistry()
	for _, m := range reg.All() {
		t.Run(m.Collection, func(t *testing.T) {
			assert.NotEmpty(t, m.Table)
			assert.True(t, m.HasColumn("id"), "id is the sole join key and must be a column")
			assert.True(t, m.HasColumn("extra_data"), "every table carries the catch-all bucket")
			assert.NotEmpty(t, m.WindowColumn)
			assert.True(t, m.IsTimeColumn(m.WindowColumn) || m.WindowColumn == "created_at",
				"window column must hold timestamps")

			for _, req := range m.Required {
				assert.True(t, m.HasColumn(req), "required column %s must be allowed", req)
			}
			for _, tc := range m.TimeColumns {
				assert.True(t, m.HasColumn(tc), "time column %s must be allowed", tc)
			}
			for _, col := range m.Fields {
				assert.True(t, m.HasColumn(col), "explicitly mapped column %s must be allowed", col)
			}
		})
	}
}

func TestMapping_ResolveRoundtrip(t *testing.T) {
	reg := NewRegistry()
	m, _ := reg.Get("orders")

	assert.Equal(t, "branch_name", m.Resolve("branch"))
	assert.Equal(t, "branch", m.ReverseResolve("branch_name"))
	assert.Equal(t, "order_date", m.Resolve("orderDate"))
	assert.Equal(t, "orderDate", m.ReverseResolve("order_date"))
}
