package extractor

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupePreservesFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Dedupe([]string{"b", "a", "b", "c"}))
	assert.Empty(t, Dedupe(nil))
}

func TestGalleryParserFailsSoft(t *testing.T) {
	var p GalleryJSONParser

	assert.Empty(t, p.ParseInitScript(`{"x": {"mage/gallery/gallery": {"data": [`))
	assert.Empty(t, p.ParseInitScript(`{"x": {"other/widget": {}}}`))
	assert.Empty(t, p.ParseDataAttribute(`not json`))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.ParseDataAttribute(`{"data":[{"full":"a.jpg"},{"img":"b.jpg"},{"thumb":"c.jpg"}]}`))
}

func TestResolveSkipsMalformedGalleryAndCharts(t *testing.T) {
	doc := parseDoc(t, `<html><body>
<script type="text/x-magento-init">{"broken": </script>
<div class="fotorama__stage__frame" href="/media/front.jpg"><img src="data:image/gif;base64,AAAA"></div>
<img class="gallery-placeholder__image" src="/media/size-chart.png">
<img class="gallery-placeholder__image" src="/media/front.jpg">
<meta property="og:image" content="https://cdn.test/og.jpg">
</body></html>`)
	base, err := url.Parse("https://shop.test/p/x.html")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://shop.test/media/front.jpg"}, ImageResolver{}.Resolve(doc, base))
}

func TestResolveUsesMetadataOnlyWhenEmpty(t *testing.T) {
	doc := parseDoc(t, `<html><head>
<meta itemprop="image" content="https://cdn.test/primary.jpg">
<meta property="og:image" content="https://cdn.test/primary.jpg">
</head><body></body></html>`)
	base, err := url.Parse("https://shop.test/p/x.html")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cdn.test/primary.jpg"}, ImageResolver{}.Resolve(doc, base))
}
