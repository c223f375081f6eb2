package extract

import (
	"net/url"
	"strings"
)

// Substrings that mark an image as decoration or tracking rather
// than article content.
var excludedImagePatterns = []string{
	"1x1", "pixel", "tracker", "beacon", "icon", "favicon",
	"logo", "blank.gif", "transparent.png",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// FilterImageURLs resolves raw image references against the page URL
// and drops tracking pixels, icons and non-image resources.
// Order is preserved and duplicates removed.
func FilterImageURLs(base *url.URL, raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		resolved, ok := resolve(base, r)
		if !ok || !isContentImage(resolved) || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

// FilterLinkURLs resolves raw hrefs against the page URL, keeping
// deduplicated absolute http(s) links and dropping self references.
func FilterLinkURLs(base *url.URL, raw []string) []string {
	self := base.String()
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		resolved, ok := resolve(base, r)
		if !ok || resolved == self || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	return out
}

// resolve turns a possibly relative reference into an absolute
// http(s) URL. Anchors, javascript: and data: references are dropped.
func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// isContentImage applies the exclusion patterns and, when the path
// carries an extension, requires a known image type.
func isContentImage(raw string) bool {
	lower := strings.ToLower(raw)
	for _, pattern := range excludedImagePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	path := u.Path
	if dot := strings.LastIndex(path, "."); dot >= 0 && !strings.Contains(path[dot:], "/") {
		ext := path[dot:]
		for _, known := range imageExtensions {
			if ext == known {
				return true
			}
		}
		return false
	}
	// Extensionless URLs are common for CDN images; keep them.
	return true
}
