package crawler

import (
	"net/url"
	"strings"
)

// videoHosts are dropped from search results; their pages carry no article text.
var videoHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"dailymotion.com",
	"tiktok.com",
}

// normalizeURL normalizes a URL to a canonical form for duplicate detection
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	// Always drop the trailing slash for non-root paths
	path := parsed.Path
	if path == "" {
		path = "/"
	} else if path != "/" {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}
	parsed.Path = path

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	if parsed.Port() == "80" && parsed.Scheme == "http" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}
	if parsed.Port() == "443" && parsed.Scheme == "https" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}

	return parsed.String(), nil
}

// isVideoHost reports whether host is, or is a subdomain of, a video platform.
func isVideoHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, v := range videoHosts {
		if host == v || strings.HasSuffix(host, "."+v) {
			return true
		}
	}
	return false
}

// URLKey is the dedupe key of a URL. Unparseable input is its own key.
func URLKey(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	key, err := normalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return key
}

// filterResults keeps http(s) URLs that are not video pages, drops duplicates,
// and caps the list at limit.
func filterResults(raw []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, r := range raw {
		if len(out) >= limit {
			break
		}
		parsed, err := url.Parse(strings.TrimSpace(r))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			continue
		}
		if isVideoHost(parsed.Hostname()) {
			continue
		}
		key, err := normalizeURL(parsed.String())
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, parsed.String())
	}
	return out
}
