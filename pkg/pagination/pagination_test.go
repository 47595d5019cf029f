package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaginationParams(t *testing.T) {
	p, err := ParsePaginationParams("", "")
	require.NoError(t, err)
	assert.Equal(t, &PaginationParams{Page: 1, Limit: DefaultLimit, Offset: 0}, p)

	p, err = ParsePaginationParams("3", "10")
	require.NoError(t, err)
	assert.Equal(t, 20, p.Offset)

	p, err = ParsePaginationParams("0", "500")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)

	_, err = ParsePaginationParams("x", "")
	assert.Error(t, err)
}

func TestBuildPaginationResponse(t *testing.T) {
	params := &PaginationParams{Page: 1, Limit: 2}

	resp := BuildPaginationResponse(params, []int{1, 2, 3})
	assert.True(t, resp.HasMore)
	assert.Equal(t, []int{1, 2}, resp.Data)

	resp = BuildPaginationResponse(params, []int{1})
	assert.False(t, resp.HasMore)
}
