package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/imaging"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Per-item file names.
const (
	DetailFileName     = "productdetails.csv"
	VariantsFileName   = "variants.csv"
	ImageIndexFileName = "image_urls.csv"
	ImagesDirName      = "images"
)

var (
	detailHeader     = []string{"sku", "name", "category", "price", "description", "sizes", "fabrics", "product_url"}
	variantsHeader   = []string{"sku", "category", "size", "fabric", "base_price"}
	imageIndexHeader = []string{"sku", "label", "image_url", "filename"}
)

func writeDetail(dir string, r *models.ProductRecord) error {
	return writeCSVAtomic(filepath.Join(dir, DetailFileName), [][]string{
		detailHeader,
		{
			r.SKU,
			r.Name,
			r.Category.Label(),
			r.Price,
			r.Description,
			strings.Join(r.Sizes, ","),
			strings.Join(r.Fabrics, ","),
			r.SourceURL,
		},
	})
}

func writeVariants(dir string, r *models.ProductRecord, variants []models.Variant) error {
	category := r.Category.Label()
	rows := make([][]string, 0, len(variants)+1)
	rows = append(rows, variantsHeader)
	for _, v := range variants {
		rows = append(rows, []string{v.SKU, category, v.Size, v.Fabric, v.Price})
	}
	return writeCSVAtomic(filepath.Join(dir, VariantsFileName), rows)
}

func writeImageIndex(dir, sku string, images []imaging.Image) error {
	rows := make([][]string, 0, len(images)+1)
	rows = append(rows, imageIndexHeader)
	for _, img := range images {
		rows = append(rows, []string{sku, img.Asset.Label, img.Asset.SourceURL, img.Asset.Filename})
	}
	return writeCSVAtomic(filepath.Join(dir, ImageIndexFileName), rows)
}

// writeImages makes images/ hold exactly the given set. Files left by an
// earlier attempt that are not in the set are removed.
func writeImages(dir string, images []imaging.Image) error {
	imageDir := filepath.Join(dir, ImagesDirName)
	if len(images) == 0 {
		if err := os.RemoveAll(imageDir); err != nil {
			return fmt.Errorf("clear image directory: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}

	keep := make(map[string]struct{}, len(images))
	for _, img := range images {
		if err := writeFileAtomic(filepath.Join(imageDir, img.Asset.Filename), img.Data); err != nil {
			return err
		}
		keep[img.Asset.Filename] = struct{}{}
	}
	return pruneDir(imageDir, keep)
}

func pruneDir(dir string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove stale %s: %w", e.Name(), err)
		}
	}
	return nil
}

// writeCSVAtomic replaces path with rows. Readers never observe a partial file.
func writeCSVAtomic(path string, rows [][]string) error {
	return replaceFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write csv %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

func writeFileAtomic(path string, data []byte) error {
	return replaceFile(path, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		return nil
	})
}

func replaceFile(path string, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
