// Package pdfinfo inspects PDF files before conversion.
//
// We use the ledongthuc/pdf library for structure parsing. It's a pure
// Go implementation — no CGO required — which keeps the pre-flight
// check cheap: the renderer only ever sees files that parsed here.
package pdfinfo

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Info holds what the orchestrator needs to know before converting.
type Info struct {
	PageCount int
	Size      int64
}

// Inspect validates the data as a PDF and returns its page count.
//
// Go Pattern: We accept a byte slice instead of a filename because the
// data may come from memory; the pdf library needs io.ReaderAt for
// random access to the cross-reference table.
func Inspect(data []byte) (*Info, error) {
	if !ValidPDF(data) {
		return nil, fmt.Errorf("not a PDF file (missing %%PDF- header)")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return &Info{
		PageCount: reader.NumPage(),
		Size:      int64(len(data)),
	}, nil
}

// ValidPDF checks if the data looks like a PDF by its magic bytes.
func ValidPDF(data []byte) bool {
	// PDF files start with "%PDF-"
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
