package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		limit  int
		offset int
	}{
		{"defaults", "/rulesets", DefaultLimit, 0},
		{"explicit limit and offset", "/rulesets?limit=5&offset=10", 5, 10},
		{"per_page alias", "/rulesets?per_page=7", 7, 0},
		{"limit wins over per_page", "/rulesets?limit=5&per_page=7", 5, 0},
		{"page converted to offset", "/rulesets?page=3&limit=10", 10, 20},
		{"offset wins over page", "/rulesets?offset=4&page=3", DefaultLimit, 4},
		{"first page is offset zero", "/rulesets?page=1", DefaultLimit, 0},
		{"limit capped at maximum", "/rulesets?limit=500", MaxLimit, 0},
		{"negative limit falls back", "/rulesets?limit=-5", DefaultLimit, 0},
		{"negative offset falls back", "/rulesets?offset=-3", DefaultLimit, 0},
		{"garbage values fall back", "/rulesets?limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			p := Parse(r)

			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestProbeLimit(t *testing.T) {
	p := Params{Limit: 20}
	assert.Equal(t, 21, p.ProbeLimit())
}

func TestNewPage(t *testing.T) {
	t.Run("partial page has no next", func(t *testing.T) {
		page := NewPage([]int{1, 2}, Params{Limit: 3})

		assert.Equal(t, []int{1, 2}, page.Data)
		assert.False(t, page.HasNext)
	})

	t.Run("exactly full page has no next", func(t *testing.T) {
		page := NewPage([]int{1, 2, 3}, Params{Limit: 3})

		assert.Equal(t, []int{1, 2, 3}, page.Data)
		assert.False(t, page.HasNext)
	})

	t.Run("probe row trimmed and flagged", func(t *testing.T) {
		page := NewPage([]int{1, 2, 3, 4}, Params{Limit: 3, Offset: 6})

		assert.Equal(t, []int{1, 2, 3}, page.Data)
		assert.True(t, page.HasNext)
		assert.Equal(t, 3, page.Limit)
		assert.Equal(t, 6, page.Offset)
	})

	t.Run("empty result serializes as empty array", func(t *testing.T) {
		page := NewPage[string](nil, Params{Limit: 3})

		assert.NotNil(t, page.Data)
		assert.Empty(t, page.Data)
		assert.False(t, page.HasNext)
	})
}
