package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query             string
		wantPage, wantLim int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&limit=20", 3, 20},
		{"?page=-1&limit=0", 1, DefaultPageSize},
		{"?page=abc&limit=1000", 1, MaxPageSize},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/companions"+tc.query, nil)
		page, limit := ParsePagination(c)
		assert.Equal(t, tc.wantPage, page, tc.query)
		assert.Equal(t, tc.wantLim, limit, tc.query)
	}
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?limit=5", 5},
		{"?limit=-2", 10},
		{"?limit=abc", 10},
		{"?limit=500", MaxPageSize},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/sessions"+tc.query, nil)
		assert.Equal(t, tc.want, QueryLimit(c, 10), tc.query)
	}
}
