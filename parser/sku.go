package parser

import (
	"net/url"
	"path"
	"strings"

	"github.com/kennygrant/sanitize"
)

// SanitizeSKU makes a SKU safe to use as a directory name.
func SanitizeSKU(sku string) string {
	cleaned := sanitize.BaseName(Clean(sku))
	return strings.Trim(cleaned, ".-")
}

// SKUFromURL synthesizes a SKU from the last path segment of a product URL.
func SKUFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if base == "." || base == "/" {
		return ""
	}
	for strings.HasSuffix(base, ".html") {
		base = strings.TrimSuffix(base, ".html")
	}
	return SanitizeSKU(base)
}

// PathSegment turns a taxonomy segment into a lower-case directory name.
func PathSegment(segment string) string {
	cleaned := strings.ToLower(sanitize.BaseName(Clean(segment)))
	return strings.Trim(cleaned, ".-")
}
