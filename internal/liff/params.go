// Package liff resolves deep-link parameters for addresses opened inside
// the LINE mini-browser, where the client folds the original query string
// into a single liff.state wrapper parameter.
package liff

import (
	"net/url"
	"strings"
)

// StateParam is the wrapper parameter the LINE client appends when a deep
// link passes through it.
const StateParam = "liff.state"

// Resolve extracts the named parameter from rawURL. A top-level query
// parameter wins; otherwise the liff.state value is unwrapped and searched.
// An empty value is treated as absent at every level, and malformed input
// degrades to not-found rather than an error.
func Resolve(rawURL, name string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()

	if v := q.Get(name); v != "" {
		return v, true
	}

	state := q.Get(StateParam)
	if state == "" {
		return "", false
	}
	if strings.Contains(state, "%") {
		if dec, err := url.QueryUnescape(state); err == nil {
			state = dec
		}
	}

	inner := innerQuery(state)
	if inner == "" {
		return "", false
	}
	vals, err := url.ParseQuery(inner)
	if err != nil {
		return "", false
	}
	if v := vals.Get(name); v != "" {
		return v, true
	}
	return "", false
}

// innerQuery isolates the query-string portion of a liff.state value.
// Observed shapes: "/path?q", "?q", and a bare "q". Anything after a '#'
// belongs to the fragment and is dropped.
func innerQuery(state string) string {
	var inner string
	if idx := strings.Index(state, "?"); idx >= 0 {
		inner = state[idx+1:]
	} else {
		inner = strings.TrimPrefix(state, "/")
	}
	if idx := strings.Index(inner, "#"); idx >= 0 {
		inner = inner[:idx]
	}
	return inner
}

// SetParams rewrites rawURL with the given parameters applied: a non-empty
// value sets the parameter, an empty value deletes it. Used to keep the
// shareable address in sync with the active topic and item.
func SetParams(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		if v == "" {
			q.Del(k)
		} else {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StateValue builds the liff.state payload encoding a topic and optional
// item, the inverse of what Resolve unwraps.
func StateValue(topic, item string) string {
	q := url.Values{}
	if topic != "" {
		q.Set("topic", topic)
	}
	if item != "" {
		q.Set("v", item)
	}
	return "?" + q.Encode()
}
