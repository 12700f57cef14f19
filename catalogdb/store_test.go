package catalogdb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestStatements(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 19800))
	item := &models.ScrapedItem{
		Record: &models.ProductRecord{
			SKU:       "TSRG104",
			Name:      "Classic Tee",
			Price:     "499",
			SourceURL: "https://shop.test/tsrg104.html",
			Category:  models.CategoryPath{Main: "fashion", Gender: "men", ProductType: "t-shirt"},
		},
		Variants: []models.Variant{
			{SKU: "TSRG104", Size: "N/A", Fabric: "N/A", Price: "499"},
		},
		Images: []models.ImageAsset{
			{SourceURL: "https://cdn.test/a.jpg", Label: "front", Filename: "front.jpg"},
			{SourceURL: "https://cdn.test/b.jpg", Label: "back", Filename: "back.jpg", HostedURL: "https://media.test/b.jpg"},
		},
	}

	statements := Statements(item, at)
	require.Len(t, statements, 6)

	product := statements[0]
	assert.True(t, strings.Contains(product.SQL, "ON CONFLICT (sku) DO UPDATE"))
	assert.Equal(t, "TSRG104", product.Args[0])
	assert.Equal(t, []string{}, product.Args[7])
	assert.Equal(t, at.UTC(), product.Args[10])

	assert.Contains(t, statements[1].SQL, "DELETE FROM catalog_variants")
	assert.Equal(t, []any{"TSRG104", "N/A", "N/A", "499"}, statements[2].Args)
	assert.Contains(t, statements[3].SQL, "DELETE FROM catalog_images")

	assert.Nil(t, statements[4].Args[4])
	hosted, ok := statements[5].Args[4].(*string)
	require.True(t, ok)
	assert.Equal(t, "https://media.test/b.jpg", *hosted)
}

func TestStatementPlaceholdersMatchArgs(t *testing.T) {
	item := &models.ScrapedItem{
		Record:   &models.ProductRecord{SKU: "X"},
		Variants: []models.Variant{{SKU: "X"}},
		Images:   []models.ImageAsset{{Label: "front"}},
	}
	for _, st := range Statements(item, time.Now()) {
		placeholders := strings.Count(st.SQL, "$")
		assert.Equal(t, placeholders, len(st.Args), st.SQL)
	}
}
