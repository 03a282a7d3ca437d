package util

import (
	"net/url"
	"strings"
)

// MaskURL strips credentials embedded in a repository URL so it can appear
// in log lines. Both http(s) userinfo and scp-like ssh user@host forms are
// handled; anything unparseable is returned with userinfo heuristically
// removed.
func MaskURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if u.User != nil {
			u.User = url.User("xxxxx")
		}
		return u.String()
	}

	// scp-like syntax: git@host:path. The user part is not a secret, but
	// anything before an @ that contains a colon might hold a token.
	if at := strings.LastIndexByte(raw, '@'); at >= 0 {
		if strings.ContainsRune(raw[:at], ':') {
			return "xxxxx@" + raw[at+1:]
		}
	}
	return raw
}
