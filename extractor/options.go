package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// OptionGroup reads the options of one labeled swatch group. A missing
// group yields no options, never an error.
type OptionGroup struct {
	Label string
	Class string
}

// Extract returns the ordered, de-duplicated option texts.
func (g OptionGroup) Extract(doc *goquery.Document) []string {
	var options []string

	doc.Find(".swatch-attribute").EachWithBreak(func(_ int, attr *goquery.Selection) bool {
		label := parser.Clean(attr.Find(".swatch-attribute-label").First().Text())
		if !strings.EqualFold(label, g.Label) && !(g.Class != "" && attr.HasClass(g.Class)) {
			return true
		}
		options = collectOptions(attr.Find(".swatch-option"))
		return len(options) == 0
	})
	if len(options) > 0 {
		return options
	}

	// Labels rendered outside a .swatch-attribute wrapper: take the next container.
	doc.Find(".swatch-attribute-label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.EqualFold(parser.Clean(label.Text()), g.Label) {
			return true
		}
		container := label.NextAllFiltered(".swatch-option-container").First()
		if container.Length() == 0 {
			container = label.Next()
		}
		options = collectOptions(container.Find(".swatch-option"))
		return false
	})
	return options
}

func collectOptions(sel *goquery.Selection) []string {
	seen := make(map[string]struct{})
	var out []string
	sel.Each(func(_ int, opt *goquery.Selection) {
		text := parser.Clean(opt.Text())
		if text == "" {
			text = parser.Clean(opt.AttrOr("data-option-label", opt.AttrOr("option-label", "")))
		}
		if text == "" {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	return out
}
