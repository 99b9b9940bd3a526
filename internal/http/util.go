package httpx

import (
	"net/url"
	"strconv"
)

// page is the limit/offset window of a list request.
type page struct {
	Limit  int
	Offset int
}

// parsePage reads limit and offset from q. Missing or malformed values use the
// defaults; limit is clamped to [1, maxLimit] and offset to >= 0.
func parsePage(q url.Values, defLimit, maxLimit int) page {
	maxLimit = max(maxLimit, 1)
	p := page{
		Limit:  queryInt(q, "limit", defLimit),
		Offset: max(queryInt(q, "offset", 0), 0),
	}
	p.Limit = min(max(p.Limit, 1), maxLimit)
	return p
}

func queryInt(q url.Values, key string, def int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return def
	}
	return n
}
