package parser

import (
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

const (
	DefaultMainCategory = "fashion"
	UnknownSegment      = "unknown"
)

var mainCategories = map[string]struct{}{
	"fashion":            {},
	"gifts":              {},
	"personalised-gifts": {},
	"home-decor":         {},
	"accessories":        {},
	"kids-corner":        {},
}

var genders = map[string]string{
	"him":    "men",
	"men":    "men",
	"man":    "men",
	"her":    "women",
	"women":  "women",
	"woman":  "women",
	"kids":   "kids",
	"boys":   "kids",
	"girls":  "kids",
	"unisex": "unisex",
}

// CategoryFromURL segments the URL path against the storefront vocabulary.
// The final segment is the product itself and never counts as a product type.
func CategoryFromURL(rawURL string) models.CategoryPath {
	path := models.CategoryPath{
		Main:        DefaultMainCategory,
		Gender:      UnknownSegment,
		ProductType: UnknownSegment,
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return path
	}

	var segments []string
	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, strings.ToLower(s))
		}
	}
	if len(segments) == 0 {
		return path
	}
	parents := segments[:len(segments)-1]

	typeIndex := -1
	for i, s := range parents {
		if _, ok := mainCategories[s]; ok && i == 0 {
			path.Main = s
			typeIndex = i + 1
			continue
		}
		if g, ok := genders[s]; ok && path.Gender == UnknownSegment {
			path.Gender = g
			typeIndex = i + 1
		}
	}

	if typeIndex >= 0 && typeIndex < len(parents) {
		if t := PathSegment(strings.TrimSuffix(parents[typeIndex], ".html")); t != "" {
			path.ProductType = t
		}
	}
	return path
}
