package extractor

import (
	"encoding/json"
	"sort"
	"strings"
)

const galleryWidget = "mage/gallery/gallery"

type galleryImage struct {
	Full  string `json:"full"`
	Img   string `json:"img"`
	Thumb string `json:"thumb"`
}

type galleryConfig struct {
	Data []galleryImage `json:"data"`
}

// GalleryJSONParser reads image URLs out of embedded gallery configuration.
// Absent or malformed JSON is expected on some templates, so every parse
// failure yields an empty list instead of an error.
type GalleryJSONParser struct{}

// ParseInitScript handles a text/x-magento-init block keyed by DOM selector.
func (GalleryJSONParser) ParseInitScript(raw string) []string {
	if !strings.Contains(raw, galleryWidget) {
		return nil
	}
	var blocks map[string]map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil
	}

	selectors := make([]string, 0, len(blocks))
	for selector := range blocks {
		selectors = append(selectors, selector)
	}
	sort.Strings(selectors)

	var urls []string
	for _, selector := range selectors {
		payload, ok := blocks[selector][galleryWidget]
		if !ok {
			continue
		}
		var cfg galleryConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			continue
		}
		urls = append(urls, cfg.urls()...)
	}
	return urls
}

// ParseDataAttribute handles a data-gallery attribute holding {"data": [...]}.
func (GalleryJSONParser) ParseDataAttribute(raw string) []string {
	var cfg galleryConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil
	}
	return cfg.urls()
}

func (c galleryConfig) urls() []string {
	out := make([]string, 0, len(c.Data))
	for _, img := range c.Data {
		switch {
		case img.Full != "":
			out = append(out, img.Full)
		case img.Img != "":
			out = append(out, img.Img)
		}
	}
	return out
}
