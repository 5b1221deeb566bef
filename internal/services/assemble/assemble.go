// Package assemble builds a single PDF from a set of image files.
//
// Assembly is delegated to pdfcpu's image import: each image becomes
// one page, in input order. Input order is the ordering contract — the
// orchestrator never reorders a batch.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// imageExtensions lists the input types we accept, matching the
// browser-side file filter.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".webp": true,
}

// SupportedImage reports whether the filename looks like an image we
// can place on a PDF page.
func SupportedImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ImagesToPDF writes a PDF containing one page per input image, in the
// given order, to outPath.
func ImagesToPDF(imagePaths []string, outPath string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no images to assemble")
	}
	for _, p := range imagePaths {
		if !SupportedImage(p) {
			return fmt.Errorf("unsupported image type: %s", filepath.Base(p))
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("cannot access image %s: %w", filepath.Base(p), err)
		}
	}

	conf := model.NewDefaultConfiguration()
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(imagePaths, outPath, imp, conf); err != nil {
		return fmt.Errorf("failed to assemble PDF: %w", err)
	}
	return nil
}
