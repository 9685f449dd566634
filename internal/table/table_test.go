package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/nestedtables/internal/value"
)

func TestNewDefaults(t *testing.T) {
	tbl := New(Options{Name: "orders"})
	assert.Equal(t, "orders", tbl.Name())
	assert.Equal(t, AutoIDColumn, tbl.IDColumn())
	assert.Equal(t, "orders_id", tbl.RefIDColumn())
	assert.True(t, tbl.AutoID())

	tbl = New(Options{Name: "users", IDColumn: "uid", RefIDColumn: "owner"})
	assert.Equal(t, "uid", tbl.IDColumn())
	assert.Equal(t, "owner", tbl.RefIDColumn())
	assert.False(t, tbl.AutoID())
}

func TestCreateRecordAutoID(t *testing.T) {
	tbl := New(Options{Name: "t"})
	for want := int64(1); want <= 3; want++ {
		id, err := tbl.CreateRecord(value.NewObject())
		require.NoError(t, err)
		assert.Equal(t, value.Int(want), id)
	}
	assert.Equal(t, 3, tbl.Len())
}

func TestCreateRecordNaturalKey(t *testing.T) {
	tbl := New(Options{Name: "users", IDColumn: "uid"})

	id, err := tbl.CreateRecord(value.NewObject(value.KV("uid", value.String("u1"))))
	require.NoError(t, err)
	assert.Equal(t, value.String("u1"), id)

	tests := []struct {
		name    string
		seed    value.Value
		wantErr error
	}{
		{"duplicate", value.NewObject(value.KV("uid", value.String("u1"))), ErrDuplicateKey},
		{"missing", value.NewObject(value.KV("name", value.String("x"))), ErrMissingKey},
		{"null", value.NewObject(value.KV("uid", value.Null())), ErrMissingKey},
		{"object key", value.NewObject(value.KV("uid", value.NewObject())), ErrKeyType},
		{"sequence key", value.NewObject(value.KV("uid", value.Sequence{value.Int(1)})), ErrKeyType},
		{"scalar seed", value.String("u2"), ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.CreateRecord(tt.seed)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, "users", te.Table)
		})
	}
	assert.Equal(t, 1, tbl.Len(), "failed creations leave no rows")
}

func TestDuplicateDoesNotAdvanceCounter(t *testing.T) {
	tbl := New(Options{Name: "t", IDColumn: "k"})
	_, err := tbl.CreateRecord(value.NewObject(value.KV("k", value.Int(1))))
	require.NoError(t, err)
	_, err = tbl.CreateRecord(value.NewObject(value.KV("k", value.Int(1))))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestUpdateRecordOverwrite(t *testing.T) {
	t.Run("rejected without allow_value_update", func(t *testing.T) {
		tbl := New(Options{Name: "t"})
		id, err := tbl.CreateRecord(nil)
		require.NoError(t, err)

		require.NoError(t, tbl.UpdateRecord(id, []Cell{{"a", value.Int(1)}}, false))
		err = tbl.UpdateRecord(id, []Cell{{"b", value.Int(2)}, {"a", value.Int(1)}}, false)
		require.ErrorIs(t, err, ErrOverwrite)
		assert.Contains(t, err.Error(), "t[1].a")

		rec, _ := tbl.Get(id)
		assert.Equal(t, map[string]any{"a": int64(1)}, rec.Map(), "rejected update writes nothing")
	})

	t.Run("last write wins with allow_value_update", func(t *testing.T) {
		tbl := New(Options{Name: "t"})
		id, err := tbl.CreateRecord(nil)
		require.NoError(t, err)

		require.NoError(t, tbl.UpdateRecord(id, []Cell{{"a", value.Int(1)}}, true))
		require.NoError(t, tbl.UpdateRecord(id, []Cell{{"a", value.Int(2)}}, true))

		rec, _ := tbl.Get(id)
		v, ok := rec.Get("a")
		require.True(t, ok)
		assert.Equal(t, value.Int(2), v)
		assert.Equal(t, 1, rec.Len())
	})

	t.Run("same column twice in one update", func(t *testing.T) {
		tbl := New(Options{Name: "t"})
		id, _ := tbl.CreateRecord(nil)
		err := tbl.UpdateRecord(id, []Cell{{"a", value.Int(1)}, {"a", value.Int(1)}}, false)
		assert.ErrorIs(t, err, ErrOverwrite)
	})
}

func TestUpdateUnknownRecord(t *testing.T) {
	tbl := New(Options{Name: "t"})
	err := tbl.UpdateRecord(value.Int(9), []Cell{{"a", value.Int(1)}}, true)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestColumnsFirstSeenOrder(t *testing.T) {
	tbl := New(Options{Name: "t"})
	id1, _ := tbl.CreateRecord(nil)
	id2, _ := tbl.CreateRecord(nil)

	require.NoError(t, tbl.UpdateRecord(id1, []Cell{{"b", value.Int(1)}, {"a", value.Int(1)}}, false))
	require.NoError(t, tbl.UpdateRecord(id2, []Cell{{"c", value.Int(1)}, {"a", value.Int(2)}}, false))

	assert.Equal(t, []string{"b", "a", "c"}, tbl.Columns())

	rows := tbl.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, value.Int(1), rows[0].ID)
	assert.Equal(t, []string{"c", "a"}, rows[1].Record.Columns())
}

func TestLinksDeduplicated(t *testing.T) {
	tbl := New(Options{Name: "items"})
	l := Link{Column: "root_id", TargetTable: "root", TargetColumn: AutoIDColumn, Kind: Nested1N}
	tbl.AddLink(l)
	tbl.AddLink(l)
	tbl.AddLink(Link{Column: "sku_id", TargetTable: "sku", TargetColumn: "sku", Kind: Nested11})

	links := tbl.Links()
	require.Len(t, links, 2)
	assert.Equal(t, "N:1", links[0].Kind.Cardinality())
	assert.Equal(t, "1:1", links[1].Kind.Cardinality())
}
