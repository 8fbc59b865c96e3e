// Package config resolves plugin configuration (collectd host/port and
// any other recognized keys) from a SQLAlchemy engine URL's query
// string and an explicit keyword/flag override map, the way
// client/plugin.py's Plugin.engine_created resolves them before
// calling start_plugin.
//
// A recognized key present in both the URL query and the override map
// is resolved from the URL and popped out of both; a key present in
// only one is resolved from that one and popped from it. Keys the
// caller did not ask about pass through the URL's query untouched.
package config

import "net/url"

// Resolve extracts the given keys from u's query string and from
// overrides, preferring the URL's value whenever a key appears in
// both. Resolved keys are removed from remainingQuery and
// remainingOverrides so callers can tell what the URL and the
// override map had left over, matching update_url's "pop what we
// used" behavior in the original.
func Resolve(u *url.URL, overrides map[string]string, keys ...string) (resolved map[string]string, remainingQuery url.Values, remainingOverrides map[string]string) {
	resolved = map[string]string{}

	remainingQuery = url.Values{}
	if u != nil {
		for k, v := range u.Query() {
			remainingQuery[k] = v
		}
	}

	remainingOverrides = map[string]string{}
	for k, v := range overrides {
		remainingOverrides[k] = v
	}

	for _, key := range keys {
		if vals, ok := remainingQuery[key]; ok && len(vals) > 0 {
			resolved[key] = vals[0]
			delete(remainingQuery, key)
			delete(remainingOverrides, key)
			continue
		}
		if v, ok := remainingOverrides[key]; ok {
			resolved[key] = v
			delete(remainingOverrides, key)
		}
	}

	return resolved, remainingQuery, remainingOverrides
}
