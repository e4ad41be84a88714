package update

import (
	"net/url"
	"strconv"
	"time"
)

// IOSReloadURL is page without its query, carrying fresh cache-busting parameters.
func IOSReloadURL(page string, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	return withQuery(page, "ios_force_reload="+ms+"&t="+ms+"&cache_bust=1")
}

// ManualReloadURL is the target of an admin cache clear on mobile devices.
func ManualReloadURL(page string, now time.Time) string {
	return withQuery(page, "cache_bust="+strconv.FormatInt(now.UnixMilli(), 10)+"&mobile=1")
}

func withQuery(page, query string) string {
	u, err := url.Parse(page)
	if err != nil {
		return page + "?" + query
	}
	u.RawQuery = query
	u.Fragment = ""
	return u.String()
}
