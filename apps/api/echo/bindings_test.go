package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func newQueryContext(query string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{"none", "", nil},
		{"empty", "?ordering=", nil},
		{"single", "?ordering=username", []core.DBOrdering{{Field: "username", Ascending: true}}},
		{
			"multiple",
			"?ordering=-created_at,%20name",
			[]core.DBOrdering{{Field: "created_at", Ascending: false}, {Field: "name", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ord := new(Ordering)
			ord.Bind(newQueryContext(tt.query))
			assert.Equal(t, tt.want, ord.Orderings)
		})
	}
}

func TestPagination_Bind(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    core.Pagination
		wantErr error
	}{
		{"defaults", "", core.Pagination{Page: 1, PageSize: core.DefaultPageSize}, nil},
		{"explicit", "?page=3&page_size=5", core.Pagination{Page: 3, PageSize: 5}, nil},
		{"capped", "?page_size=1000", core.Pagination{Page: 1, PageSize: core.MaxPageSize}, nil},
		{"invalid page", "?page=two", core.Pagination{}, errInvalidPageParam},
		{"invalid size", "?page_size=1.5", core.Pagination{}, errInvalidPageParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := new(Pagination)
			err := page.Bind(newQueryContext(tt.query))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Pagination)
		})
	}
}

func TestPagination_SetHeaders(t *testing.T) {
	ctx := newQueryContext("?page=2&page_size=10")
	page := new(Pagination)
	require.NoError(t, page.Bind(ctx))

	page.SetHeaders(ctx, 42)
	h := ctx.Response().Header()
	assert.Equal(t, "42", h.Get(headerPaginationCount))
	assert.Equal(t, "2", h.Get(headerPaginationPage))
	assert.Equal(t, "10", h.Get(headerPaginationLimit))
}
