package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// getParam returns a path or query parameter value regardless of whether
// the router stores it with a leading colon or not.
func getParam(r *http.Request, name string) string {
	if r == nil {
		return ""
	}

	if val := r.URL.Query().Get(":" + name); val != "" {
		return val
	}

	if val := r.URL.Query().Get(name); val != "" {
		return val
	}

	return r.PathValue(name)
}

// queryBool reads an optional boolean query flag.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

// parsePaging reads skip and count. Missing values stay zero so the service
// applies its defaults.
func parsePaging(r *http.Request) (int, int, error) {
	skip, count := 0, 0
	if v := r.URL.Query().Get("skip"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil || s < 0 {
			return 0, 0, fmt.Errorf("invalid skip")
		}
		skip = s
	}
	if v := r.URL.Query().Get("count"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c < 0 {
			return 0, 0, fmt.Errorf("invalid count")
		}
		count = c
	}
	return skip, count, nil
}
