package fetcher

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	t.Parallel()

	extra := url.Values{"sort": {"recency"}}
	tests := []struct {
		name   string
		source string
		page   int
		want   string
	}{
		{"plain", "https://reviews.example.com/company/acme", 1, "https://reviews.example.com/company/acme?page=1&sort=recency"},
		{"keeps params", "https://reviews.example.com/company/acme?lang=en", 3, "https://reviews.example.com/company/acme?lang=en&page=3&sort=recency"},
		{"overrides page", "https://reviews.example.com/company/acme?page=9&sort=relevance", 2, "https://reviews.example.com/company/acme?page=2&sort=recency"},
		{"drops fragment", "https://reviews.example.com/company/acme#top", 4, "https://reviews.example.com/company/acme?page=4&sort=recency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := PageURL(tc.source, tc.page, extra)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPageURLErrors(t *testing.T) {
	t.Parallel()

	_, err := PageURL("/relative/path", 1, nil)
	require.Error(t, err)
	_, err = PageURL("https://reviews.example.com", 0, nil)
	require.Error(t, err)
	_, err = PageURL("://bad", 1, nil)
	require.Error(t, err)
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	got := ParseParams(map[string]string{"sort": "recency", "languages": "all"})
	assert.Equal(t, "recency", got.Get("sort"))
	assert.Equal(t, "all", got.Get("languages"))
}
