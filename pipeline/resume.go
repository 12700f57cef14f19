package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// ResumeIndex answers "was this item already committed?" without a fetch.
// It maps product URLs to detail files found under the output root and is
// updated as items commit.
type ResumeIndex struct {
	minBytes int64

	mu    sync.RWMutex
	byURL map[string]string
}

// BuildResumeIndex scans root for committed detail files.
func BuildResumeIndex(root string, minBytes int64) (*ResumeIndex, error) {
	idx := &ResumeIndex{
		minBytes: minBytes,
		byURL:    make(map[string]string),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || d.Name() != DetailFileName || !idx.Complete(path) {
			return nil
		}
		if productURL, ok := readDetailURL(path); ok {
			idx.byURL[resumeKey(productURL)] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan output root: %w", err)
	}
	return idx, nil
}

// Complete reports whether path exists and is larger than the size floor.
// It takes no lock.
func (r *ResumeIndex) Complete(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > r.minBytes
}

// Lookup returns the detail file of productURL if it is still complete.
func (r *ResumeIndex) Lookup(productURL string) (string, bool) {
	r.mu.RLock()
	path, ok := r.byURL[resumeKey(productURL)]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return path, r.Complete(path)
}

// Record registers a freshly committed item.
func (r *ResumeIndex) Record(productURL, path string) {
	r.mu.Lock()
	r.byURL[resumeKey(productURL)] = path
	r.mu.Unlock()
}

// Len returns the number of indexed items.
func (r *ResumeIndex) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

func resumeKey(productURL string) string {
	return scraper.NormalizeProductURL(productURL)
}

func readDetailURL(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil || len(records) < 2 {
		return "", false
	}
	for i, column := range records[0] {
		if column == "product_url" && i < len(records[1]) {
			return records[1][i], records[1][i] != ""
		}
	}
	return "", false
}
