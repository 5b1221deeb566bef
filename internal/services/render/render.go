// Package render turns PDF pages into images.
//
// Rendering uses go-fitz (MuPDF bindings) — each page is rasterized at
// a DPI chosen by the quality setting, then encoded as PNG or JPEG.
package render

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// Format names a supported output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Quality selects the rendering DPI and JPEG compression level.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Options control one render pass.
type Options struct {
	Format  Format
	Quality Quality
	Pages   []int // 1-based page selection; nil means all pages
}

// PageImage is one rendered page.
type PageImage struct {
	PageNumber int // 1-based
	Data       []byte
	Ext        string // "png" or "jpg"
}

// dpiFor maps quality to rasterization DPI.
func dpiFor(q Quality) float64 {
	switch q {
	case QualityLow:
		return 72
	case QualityHigh:
		return 300
	default:
		return 150
	}
}

// jpegQualityFor maps quality to the JPEG encoder setting.
func jpegQualityFor(q Quality) int {
	switch q {
	case QualityLow:
		return 60
	case QualityHigh:
		return 92
	default:
		return 80
	}
}

// Render rasterizes the selected pages of a PDF, strictly in page order.
// An out-of-range page selection is an error, not a silent skip — the
// caller asked for something the document doesn't have.
func Render(pdfData []byte, opts Options) ([]PageImage, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := opts.Pages
	if len(pages) == 0 {
		pages = make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
	}

	format := opts.Format
	if format == "" {
		format = FormatPNG
	}

	dpi := dpiFor(opts.Quality)
	images := make([]PageImage, 0, len(pages))
	for _, pageNum := range pages {
		if pageNum < 1 || pageNum > total {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, total)
		}

		// go-fitz pages are 0-based.
		img, err := doc.ImageDPI(pageNum-1, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
		}

		var buf bytes.Buffer
		ext := "png"
		switch format {
		case FormatJPEG:
			ext = "jpg"
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQualityFor(opts.Quality)}); err != nil {
				return nil, fmt.Errorf("failed to encode page %d as JPEG: %w", pageNum, err)
			}
		default:
			if err := png.Encode(&buf, img); err != nil {
				return nil, fmt.Errorf("failed to encode page %d as PNG: %w", pageNum, err)
			}
		}

		images = append(images, PageImage{PageNumber: pageNum, Data: buf.Bytes(), Ext: ext})
	}

	return images, nil
}
