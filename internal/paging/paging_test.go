package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestClamps(t *testing.T) {
	assert.Equal(t, Request{Page: 1, PageSize: DefaultPageSize}, NewRequest(0, 0))
	assert.Equal(t, Request{Page: 3, PageSize: MaxPageSize}, NewRequest(3, 5000))
	assert.Equal(t, Request{Page: 1, PageSize: DefaultPageSize}, NewRequest(-4, -1))
	assert.Equal(t, 40, NewRequest(3, 20).Offset())
}

func TestNewPageMetadata(t *testing.T) {
	page := NewPage([]int{1, 2}, 5, NewRequest(2, 2))

	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
	assert.Equal(t, int64(5), page.TotalItems)

	last := NewPage([]int{5}, 5, NewRequest(3, 2))
	assert.False(t, last.HasNext)

	empty := NewPage[int](nil, 0, NewRequest(1, 10))
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestNewRequestCapsHugePage(t *testing.T) {
	request := NewRequest(1<<62, MaxPageSize)

	assert.Equal(t, MaxPage, request.Page)
	assert.Greater(t, request.Offset(), 0)

	page := NewPage[int](nil, 3, request)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Items)
}
