package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is an offset/limit request.
type Page struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}

// Normalize applies the default and maximum page size and clamps Skip at zero.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Take <= 0 {
		p.Take = DefaultPageSize
	}
	if p.Take > MaxPageSize {
		p.Take = MaxPageSize
	}
	return p
}

// PageResult is one page of items plus the unsliced total.
type PageResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Take  int `json:"take"`
}

// Paginate slices items according to p.
func Paginate[T any](items []T, p Page) PageResult[T] {
	p = p.Normalize()
	res := PageResult[T]{Total: len(items), Skip: p.Skip, Take: p.Take, Items: []T{}}
	if p.Skip >= len(items) {
		return res
	}
	end := min(p.Skip+p.Take, len(items))
	res.Items = append(res.Items, items[p.Skip:end]...)
	return res
}
