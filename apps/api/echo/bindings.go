package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"

	headerPaginationCount = "Pagination-Count"
	headerPaginationPage  = "Pagination-Page"
	headerPaginationLimit = "Pagination-Limit"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Pagination binds the `page` and `page_size` query params. Missing values take the defaults,
// a page size above core.MaxPageSize is capped.
type Pagination struct {
	core.Pagination
}

func (p *Pagination) Bind(ctx echo.Context) error {
	page, err := intParam(ctx, pageParam)
	if err != nil {
		return errInvalidPageParam
	}
	size, err := intParam(ctx, pageSizeParam)
	if err != nil {
		return errInvalidPageParam
	}
	p.Pagination = core.NewPagination(page, size)
	return nil
}

// SetHeaders exposes the total count of results and the current page.
func (p *Pagination) SetHeaders(ctx echo.Context, total int) {
	h := ctx.Response().Header()
	h.Set(headerPaginationCount, strconv.Itoa(total))
	h.Set(headerPaginationPage, strconv.Itoa(p.Page))
	h.Set(headerPaginationLimit, strconv.Itoa(p.PageSize))
}

func intParam(ctx echo.Context, name string) (int, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	return strconv.Atoi(val)
}
