package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	p := New(0, 0, LoanLimit)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, LoanLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestNewClampsLimit(t *testing.T) {
	p := New(3, 500, DefaultLimit)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 200, p.Offset)
}

func TestNewClampsHugePage(t *testing.T) {
	p := New(math.MaxInt, MaxLimit, DefaultLimit)
	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, (MaxPage-1)*MaxLimit, p.Offset)
	assert.Positive(t, p.Offset)
	assert.LessOrEqual(t, p.Offset, math.MaxInt32)
}

func TestGetMeta(t *testing.T) {
	cases := []struct {
		name      string
		page      int
		limit     int
		total     int64
		wantPages int
		wantNext  bool
		wantPrev  bool
	}{
		{"empty", 1, 10, 0, 0, false, false},
		{"exact fit", 1, 10, 10, 1, false, false},
		{"first of three", 1, 10, 25, 3, true, false},
		{"middle", 2, 10, 25, 3, true, true},
		{"last", 3, 10, 25, 3, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := GetMeta(New(tc.page, tc.limit, DefaultLimit), tc.total)
			assert.Equal(t, tc.page, meta.CurrentPage)
			assert.Equal(t, tc.wantPages, meta.TotalPages)
			assert.Equal(t, tc.total, meta.TotalItems)
			assert.Equal(t, tc.limit, meta.ItemsPerPage)
			assert.Equal(t, tc.wantNext, meta.HasNextPage)
			assert.Equal(t, tc.wantPrev, meta.HasPrevPage)
		})
	}
}

func TestNewPageNilItems(t *testing.T) {
	page := NewPage[string](nil, New(1, 10, DefaultLimit), 0)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
