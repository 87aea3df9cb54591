// Package identity derives a stable per-video identifier from a page URL.
// The identifier scopes bookmark collections: two URLs that play the same
// video must resolve to the same identifier, and non-watch pages resolve
// to the empty string.
package identity

import (
	"net/url"
	"strings"
)

// Resolve extracts the content identifier from rawURL. Match order:
//
//  1. explicit "v" query parameter (watch pages)
//  2. first path segment on a short-link host (youtu.be/<id>)
//  3. "/embed/<id>" path (embedded player)
//  4. "/shorts/<id>" path (short-form player)
//
// Returns "" when none match or the URL does not parse. Never panics on
// malformed input.
func Resolve(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if v := u.Query().Get("v"); v != "" {
		return v
	}

	segs := pathSegments(u.Path)

	if u.Hostname() == "youtu.be" && len(segs) >= 1 {
		return segs[0]
	}

	if len(segs) >= 2 {
		switch segs[0] {
		case "embed", "shorts":
			return segs[1]
		}
	}

	return ""
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
