package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageParam is the query parameter carrying the page cursor.
const PageParam = "page"

// PageURL builds the address of page n of source. Existing query parameters
// are preserved, extra parameters are set, and the page cursor always wins.
func PageURL(source string, page int, extra url.Values) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("source url %q must be absolute", source)
	}
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	q := u.Query()
	for key, values := range extra {
		q.Del(key)
		for _, v := range values {
			q.Add(key, v)
		}
	}
	q.Set(PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// ParseParams turns "key=value" pairs into url.Values.
func ParseParams(pairs map[string]string) url.Values {
	values := url.Values{}
	for k, v := range pairs {
		values.Set(k, v)
	}
	return values
}
