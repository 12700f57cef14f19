package parser

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// LabelSizeChart marks an image that never becomes a product asset.
const LabelSizeChart = "size_chart"

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".avif": {},
}

// IsSizeChart reports whether an image URL points at a size chart.
func IsSizeChart(imageURL string) bool {
	return strings.Contains(keywordPath(imageURL), "chart")
}

// LabelImage names an image by URL keywords, falling back to its 1-based
// position: front, back, side, then alt_<n>.
func LabelImage(imageURL string, index int) string {
	u := keywordPath(imageURL)
	switch {
	case strings.Contains(u, "front"):
		return "front"
	case strings.Contains(u, "back"):
		return "back"
	case strings.Contains(u, "side"):
		return "side"
	case strings.Contains(u, "chart"):
		return LabelSizeChart
	}
	return PositionalLabel(index)
}

// PositionalLabel is the label used when the URL carries no keyword.
func PositionalLabel(index int) string {
	switch index {
	case 1:
		return "front"
	case 2:
		return "back"
	case 3:
		return "side"
	}
	return AltLabel(index)
}

// AltLabel returns alt_<index>.
func AltLabel(index int) string {
	return "alt_" + strconv.Itoa(index)
}

// keywordPath is the lower-case URL path. Host names such as
// backend-media.example never count as keywords.
func keywordPath(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return strings.ToLower(imageURL)
	}
	return strings.ToLower(parsed.Path)
}

// ImageExtension returns the lower-case extension of the URL path, or .jpg.
func ImageExtension(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, ok := imageExtensions[ext]; !ok {
		return ".jpg"
	}
	return ext
}
