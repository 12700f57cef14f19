package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func itemDir(root string, n int) string {
	return filepath.Join(root, "fashion", "men", "t-shirt", productSKU(n))
}

func TestRunSeedEndToEnd(t *testing.T) {
	dir := t.TempDir()
	p, transport := newTestPipeline(t, testConfig(dir, 2))

	sitemap := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s</loc></url>
  <url><loc>%s/fashion/her/dress/drrg1.html</loc></url>
  <url><loc>%s</loc></url>
  <url><loc>%s/fashion/her/dress/drrg2.html</loc></url>
  <url><loc>%s</loc></url>
</urlset>`, productURL(1), shop, productURL(2), shop, productURL(3))
	transport.RegisterResponder("GET", shop+"/sitemap.xml", httpmock.NewStringResponder(200, sitemap))
	registerProduct(transport, 1)
	registerProduct(transport, 3)
	transport.RegisterResponder("GET", productURL(2), httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	result, err := p.RunSeed(context.Background(), shop+"/sitemap.xml", "/him/", nil)
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if result.Discovered != 3 {
		t.Fatalf("discovered=%d, want 3", result.Discovered)
	}

	want := []models.OutcomeStatus{models.StatusSuccess, models.StatusFailed, models.StatusSuccess}
	for i, out := range result.Outcomes {
		if out.Status != want[i] {
			t.Fatalf("outcome[%d]=%s (%s), want %s", i, out.Status, out.Reason, want[i])
		}
	}
	if got := result.Outcomes[1].Reason; got != "connection" {
		t.Fatalf("failure reason=%q, want connection", got)
	}
	if result.RunID == "" {
		t.Fatalf("expected run id")
	}

	rows := readCSV(t, filepath.Join(dir, "master_variants.csv"))
	if strings.Join(rows[0], ",") != strings.Join(AggregateHeader, ",") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	skus := map[string]int{}
	for _, row := range rows[1:] {
		skus[row[0]]++
	}
	if len(skus) != 2 || skus[productSKU(1)] != 2 || skus[productSKU(3)] != 2 {
		t.Fatalf("aggregate skus=%v, want items 1 and 3 with 2 rows each", skus)
	}
	if got := len(rows) - 1; got != result.AggregateRows {
		t.Fatalf("aggregate rows=%d, result reports %d", got, result.AggregateRows)
	}

	detail := readCSV(t, filepath.Join(itemDir(dir, 1), DetailFileName))
	if len(detail) != 2 {
		t.Fatalf("detail rows=%d, want header + 1", len(detail))
	}
	wantDetail := []string{productSKU(1), "Tee 1", "Men", "₹401.00", `Tee number 1, "soft", combed.`, "S,M", "Cotton", productURL(1)}
	if strings.Join(detail[1], "|") != strings.Join(wantDetail, "|") {
		t.Fatalf("detail row=%q, want %q", detail[1], wantDetail)
	}

	variants := readCSV(t, filepath.Join(itemDir(dir, 1), VariantsFileName))
	if len(variants) != 3 || variants[1][1] != "Men" || variants[2][2] != "M" {
		t.Fatalf("unexpected variants %v", variants)
	}

	for _, name := range []string{"front.jpg", "back.jpg"} {
		if _, err := os.Stat(filepath.Join(itemDir(dir, 1), ImagesDirName, name)); err != nil {
			t.Fatalf("expected image %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(itemDir(dir, 1), ImagesDirName, "side.jpg")); !os.IsNotExist(err) {
		t.Fatalf("undersized image must not be written")
	}
	if got := result.Outcomes[0].ImageCount; got != 2 {
		t.Fatalf("image count=%d, want 2", got)
	}
	if _, err := os.Stat(itemDir(dir, 2)); !os.IsNotExist(err) {
		t.Fatalf("failed item must not leave a directory")
	}
}

func TestRunSeedDiscoveryFailure(t *testing.T) {
	p, transport := newTestPipeline(t, testConfig(t.TempDir(), 2))
	transport.RegisterResponder("GET", shop+"/sitemap.xml", httpmock.NewStringResponder(503, "down"))

	result, err := p.RunSeed(context.Background(), shop+"/sitemap.xml", "", nil)
	if !scraper.IsDiscoveryError(err) {
		t.Fatalf("expected discovery error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result on discovery failure")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	urls := productURLs(3)

	p, transport := newTestPipeline(t, testConfig(dir, 3))
	for i := 1; i <= 3; i++ {
		registerProduct(transport, i)
	}

	first, err := p.Run(context.Background(), urls, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Succeeded != 3 {
		t.Fatalf("first run succeeded=%d, want 3", first.Succeeded)
	}
	detailBefore, err := os.ReadFile(filepath.Join(itemDir(dir, 2), DetailFileName))
	if err != nil {
		t.Fatalf("read detail: %v", err)
	}
	calls := transport.GetTotalCallCount()

	second, err := p.Run(context.Background(), urls, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, out := range second.Outcomes {
		if out.Status != models.StatusSkipped || out.Reason != ReasonAlreadyScraped {
			t.Fatalf("second run outcome=%+v, want skipped already_scraped", out)
		}
	}
	if got := transport.GetTotalCallCount(); got != calls {
		t.Fatalf("second run issued %d requests", got-calls)
	}

	// A new process rebuilds the resume index from disk.
	fresh, freshTransport := newTestPipeline(t, testConfig(dir, 2))
	third, err := fresh.Run(context.Background(), urls, nil)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Skipped != 3 {
		t.Fatalf("fresh run skipped=%d, want 3", third.Skipped)
	}
	if got := freshTransport.GetTotalCallCount(); got != 0 {
		t.Fatalf("fresh run issued %d requests", got)
	}

	detailAfter, err := os.ReadFile(filepath.Join(itemDir(dir, 2), DetailFileName))
	if err != nil {
		t.Fatalf("read detail: %v", err)
	}
	if string(detailBefore) != string(detailAfter) {
		t.Fatalf("detail file changed between runs")
	}
	if rows := readCSV(t, filepath.Join(dir, "master_variants.csv")); len(rows) != 7 {
		t.Fatalf("aggregate rows=%d, want header + 6", len(rows))
	}
}

func TestRunSkipsBySKUAfterExtraction(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(itemDir(dir, 1), DetailFileName)
	if err := writeCSVAtomic(existing, [][]string{detailHeader, {productSKU(1), "Old", "Men", "1", "", "", "", "http://old.test/moved.html"}}); err != nil {
		t.Fatalf("seed detail file: %v", err)
	}

	p, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)

	result, err := p.Run(context.Background(), productURLs(1), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out := result.Outcomes[0]
	if out.Status != models.StatusSkipped || out.Reason != ReasonAlreadyScraped || out.Stage != models.StageExtracting {
		t.Fatalf("outcome=%+v, want skipped at extracting", out)
	}
	info := transport.GetCallCountInfo()
	if info["GET "+productURL(1)] != 1 {
		t.Fatalf("expected one page fetch, got %v", info)
	}
	if info["GET "+shop+"/media/tsrg101-front.jpg"] != 0 {
		t.Fatalf("images must not be fetched for a committed sku")
	}
}

func TestRunRetriesTruncatedDetail(t *testing.T) {
	dir := t.TempDir()
	truncated := filepath.Join(itemDir(dir, 1), DetailFileName)
	if err := os.MkdirAll(filepath.Dir(truncated), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(truncated, []byte("sku\n"), 0o644); err != nil {
		t.Fatalf("write truncated detail: %v", err)
	}

	p, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)

	result, err := p.Run(context.Background(), productURLs(1), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("truncated item should be re-attempted, got %+v", result.Outcomes[0])
	}
}

func TestRetryReplacesStaleImages(t *testing.T) {
	dir := t.TempDir()
	first, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)
	if _, err := first.Run(context.Background(), productURLs(1), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	imagesDir := filepath.Join(itemDir(dir, 1), ImagesDirName)
	if entries, _ := os.ReadDir(imagesDir); len(entries) != 2 {
		t.Fatalf("first run images=%d, want 2", len(entries))
	}

	// Drop the commit marker so the next run treats the item as torn.
	if err := os.Remove(filepath.Join(itemDir(dir, 1), DetailFileName)); err != nil {
		t.Fatalf("remove detail: %v", err)
	}

	second, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)
	backFrame := `<div class="fotorama__stage__frame" href="/media/tsrg101-back.jpg"></div>`
	page := strings.Replace(productPage(1), backFrame, "", 1)
	transport.RegisterResponder("GET", productURL(1), httpmock.NewStringResponder(200, page))

	result, err := second.Run(context.Background(), productURLs(1), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	out := result.Outcomes[0]
	if out.Status != models.StatusSuccess || out.ImageCount != 1 {
		t.Fatalf("outcome=%+v", out)
	}

	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		t.Fatalf("read images: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "front.jpg" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("images dir=%v, want [front.jpg]", names)
	}
	if index := readCSV(t, filepath.Join(itemDir(dir, 1), ImageIndexFileName)); len(index) != 2 {
		t.Fatalf("image index rows=%d, want 2", len(index))
	}
}

func TestRunOutputIndependentOfWorkers(t *testing.T) {
	const items = 6
	dirs := map[int]string{1: t.TempDir(), 8: t.TempDir()}

	for workers, dir := range dirs {
		p, transport := newTestPipeline(t, testConfig(dir, workers))
		for i := 1; i <= items; i++ {
			registerProduct(transport, i)
		}
		result, err := p.Run(context.Background(), productURLs(items), nil)
		if err != nil {
			t.Fatalf("run workers=%d: %v", workers, err)
		}
		if result.Succeeded != items {
			t.Fatalf("workers=%d succeeded=%d, want %d", workers, result.Succeeded, items)
		}
		if got := p.Store().RowsAppended(); got != result.AggregateRows {
			t.Fatalf("workers=%d rows appended=%d, result=%d", workers, got, result.AggregateRows)
		}
	}

	for i := 1; i <= items; i++ {
		for _, name := range []string{DetailFileName, VariantsFileName, ImageIndexFileName, filepath.Join(ImagesDirName, "front.jpg")} {
			a, err := os.ReadFile(filepath.Join(itemDir(dirs[1], i), name))
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			b, err := os.ReadFile(filepath.Join(itemDir(dirs[8], i), name))
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			if string(a) != string(b) {
				t.Fatalf("item %d %s differs between 1 and 8 workers", i, name)
			}
		}
	}
}

func TestRunDuplicateURLs(t *testing.T) {
	p, transport := newTestPipeline(t, testConfig(t.TempDir(), 1))
	registerProduct(transport, 1)

	result, err := p.Run(context.Background(), []string{productURL(1), productURL(1) + ".html"}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcomes[0].Status != models.StatusSuccess {
		t.Fatalf("first outcome=%+v", result.Outcomes[0])
	}
	if result.Outcomes[1].Status != models.StatusSkipped || result.Outcomes[1].Reason != ReasonDuplicate {
		t.Fatalf("second outcome=%+v, want duplicate skip", result.Outcomes[1])
	}
}

func TestRunCancelled(t *testing.T) {
	p, transport := newTestPipeline(t, testConfig(t.TempDir(), 2))
	registerProduct(transport, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	var streamed []models.Outcome
	result, err := p.Run(ctx, productURLs(3), func(out models.Outcome) {
		mu.Lock()
		streamed = append(streamed, out)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Skipped != 3 {
		t.Fatalf("skipped=%d, want 3", result.Skipped)
	}
	if len(streamed) != 3 {
		t.Fatalf("streamed=%d, want 3", len(streamed))
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatalf("cancelled run must not fetch")
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	skus []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, item *models.ScrapedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skus = append(r.skus, item.Record.SKU)
	return r.err
}

func TestRunNotifiesCommittedItems(t *testing.T) {
	p, transport := newTestPipeline(t, testConfig(t.TempDir(), 2))
	registerProduct(transport, 1)
	transport.RegisterResponder("GET", productURL(2), httpmock.NewStringResponder(404, ""))

	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("redis down")}
	p.AddNotifier(ok)
	p.AddNotifier(broken)

	result, err := p.Run(context.Background(), productURLs(2), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", result.Succeeded, result.Failed)
	}
	if result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("errors by type=%v", result.ErrorsByType)
	}
	if len(ok.skus) != 1 || ok.skus[0] != productSKU(1) {
		t.Fatalf("notified=%v", ok.skus)
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	p, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)
	transport.RegisterResponder("GET", shop+"/about-us", httpmock.NewStringResponder(200, "<html><body>About</body></html>"))

	res := p.Lookup(context.Background(), productURL(1))
	if !res.Success {
		t.Fatalf("lookup failed: %s", res.Error)
	}
	if res.SKU != productSKU(1) || res.Name != "Tee 1" || len(res.Sizes) != 2 || len(res.Images) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	res = p.Lookup(context.Background(), shop+"/about-us")
	if res.Success || !strings.Contains(res.Error, "not a product page") {
		t.Fatalf("expected structured failure, got %+v", res)
	}

	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("lookup must not write, found %d entries", len(entries))
	}
}

func TestScrapeURL(t *testing.T) {
	dir := t.TempDir()
	p, transport := newTestPipeline(t, testConfig(dir, 1))
	registerProduct(transport, 1)

	out := p.ScrapeURL(context.Background(), productURL(1))
	if out.Status != models.StatusSuccess || out.VariantCount != 2 {
		t.Fatalf("outcome=%+v", out)
	}
	if again := p.ScrapeURL(context.Background(), productURL(1)); again.Reason != ReasonAlreadyScraped {
		t.Fatalf("second scrape=%+v, want already_scraped", again)
	}
}
