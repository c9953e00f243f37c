package utils

import (
	"net/url"
	"strconv"
	"strings"
)

// FirstParam returns the first non-empty value among keys, so a parameter can
// have aliases (e.g. area and uc).
func FirstParam(q url.Values, keys ...string) (string, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v, true
		}
	}
	return "", false
}

// IntParam parses the first present alias as an int. ok is false when no alias
// is present; err is set when the value is not a number.
func IntParam(q url.Values, keys ...string) (n int, ok bool, err error) {
	v, ok := FirstParam(q, keys...)
	if !ok {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	return n, true, err
}
