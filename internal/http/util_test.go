package httpx

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  page
	}{
		{name: "defaults", query: "", want: page{Limit: 50, Offset: 0}},
		{name: "explicit", query: "limit=10&offset=30", want: page{Limit: 10, Offset: 30}},
		{name: "clamped limit", query: "limit=5000", want: page{Limit: 200, Offset: 0}},
		{name: "non-positive limit", query: "limit=0&offset=-4", want: page{Limit: 1, Offset: 0}},
		{name: "malformed", query: "limit=ten&offset=x", want: page{Limit: 50, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, parsePage(q, 50, 200))
		})
	}
}
