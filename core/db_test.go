package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name           string
		page, size     int
		want           Pagination
		wantOffset     int
		n              int
		wantStart, end int
	}{
		{name: "defaults", want: Pagination{Page: 1, PageSize: DefaultPageSize}, n: 5, end: 5},
		{name: "second page", page: 2, size: 2, want: Pagination{Page: 2, PageSize: 2}, wantOffset: 2, n: 5, wantStart: 2, end: 4},
		{name: "last partial page", page: 3, size: 2, want: Pagination{Page: 3, PageSize: 2}, wantOffset: 4, n: 5, wantStart: 4, end: 5},
		{name: "out of range", page: 9, size: 2, want: Pagination{Page: 9, PageSize: 2}, wantOffset: 16, n: 5, wantStart: 5, end: 5},
		{name: "size capped", page: 1, size: 1000, want: Pagination{Page: 1, PageSize: MaxPageSize}, n: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.size)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.wantOffset, p.Offset())
			start, end := p.Window(tt.n)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestCleanOrderings(t *testing.T) {
	allowed := map[string]string{"created_at": "created_at", "name": "name"}
	got := CleanOrderings([]DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash"},
		{Field: "created_at"},
	}, allowed)

	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, got)
	assert.Equal(t, "name ASC", got[0].String())
	assert.Equal(t, "created_at DESC", got[1].String())
}
