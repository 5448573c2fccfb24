package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_CustomValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/audit?page=3&per_page=25", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PerPage)
	assert.Equal(t, 50, p.Offset) // (3-1) * 25
	assert.Equal(t, 26, p.FetchLimit())
}

func TestFromRequest_PerPageClamped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/audit?per_page=10000", nil)
	p, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, p.PerPage)
}

func TestFromRequest_Invalid(t *testing.T) {
	for _, query := range []string{"page=0", "page=-1", "page=abc", "per_page=0", "per_page=-5", "per_page=x"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/audit?"+query, nil)
			_, err := FromRequest(req)
			assert.Error(t, err)
		})
	}
}

func TestNewResult_HasNext(t *testing.T) {
	p := Params{Page: 1, PerPage: 2}

	res := NewResult([]string{"a", "b", "c"}, p)

	assert.Equal(t, []string{"a", "b"}, res.Data)
	assert.True(t, res.HasNext)
	assert.False(t, res.HasPrev)
}

func TestNewResult_LastPage(t *testing.T) {
	p := Params{Page: 2, PerPage: 2, Offset: 2}

	res := NewResult([]string{"c"}, p)

	assert.Equal(t, []string{"c"}, res.Data)
	assert.False(t, res.HasNext)
	assert.True(t, res.HasPrev)
}

func TestNewResult_NilRows(t *testing.T) {
	res := NewResult[int](nil, DefaultParams())

	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}
