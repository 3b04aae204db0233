package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"defaults", Page{}, Page{Skip: 0, Take: DefaultPageSize}},
		{"negative skip", Page{Skip: -5, Take: 10}, Page{Skip: 0, Take: 10}},
		{"capped", Page{Skip: 3, Take: 1000}, Page{Skip: 3, Take: MaxPageSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	res := Paginate(items, Page{Skip: 1, Take: 2})
	assert.Equal(t, []int{2, 3}, res.Items)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 1, res.Skip)
	assert.Equal(t, 2, res.Take)

	res = Paginate(items, Page{Skip: 4, Take: 10})
	assert.Equal(t, []int{5}, res.Items)

	res = Paginate(items, Page{Skip: 10})
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 5, res.Total)
}
