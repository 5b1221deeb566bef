// Package convert drives conversions end to end: pre-flight limit
// check, file-by-file processing, and post-flight usage accounting.
//
// The accounting contract is all-or-nothing at the batch level: files
// are processed strictly in input order, and a successful batch is
// reported as exactly ONE conversion, no matter how many files it held.
// A partial failure reports nothing — the user is not charged for
// output they never got.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
	"github.com/pagecraft-labs/file-converter-api/internal/quota"
	"github.com/pagecraft-labs/file-converter-api/internal/services/assemble"
	"github.com/pagecraft-labs/file-converter-api/internal/services/pdfinfo"
	"github.com/pagecraft-labs/file-converter-api/internal/services/render"
)

// Oracle is the slice of the usage oracle the orchestrator needs.
// Go Pattern: accept interfaces, return structs — tests swap in a fake.
type Oracle interface {
	CheckLimits(ctx context.Context, fileSize int64) plan.Decision
	ReportUsage(ctx context.Context, rec models.ConversionRecord) quota.UpdatedCounter
}

// LimitError carries a denial decision so the UI can pick the right
// prompt: signup for guests, upgrade for plan limits, a smaller file
// for size violations.
type LimitError struct {
	Decision plan.Decision
}

func (e *LimitError) Error() string {
	switch e.Decision.Reason {
	case plan.ReasonGuestLimitReached:
		return "guest limit reached — sign up for a free account to continue"
	case plan.ReasonPlanLimitReached:
		return "conversion limit reached — upgrade your plan to continue"
	case plan.ReasonFileTooLarge:
		return fmt.Sprintf("file too large — your plan allows up to %dMB", e.Decision.MaxFileSize/(1024*1024))
	default:
		return "conversion not allowed"
	}
}

// Request describes one conversion batch.
type Request struct {
	Mode       models.ConversionType
	Files      []string // input paths, processed strictly in this order
	Format     render.Format
	Quality    render.Quality
	PageRange  string // optional selection like "1-3,5" (pdf-to-images)
	OutputName string // output filename for images-to-pdf; default "converted.pdf"
}

// Result is a completed batch.
type Result struct {
	Outputs []string                // written output paths, in production order
	Record  models.ConversionRecord // the one record the batch was reported as
	Counter quota.UpdatedCounter    // usage state after reporting
}

// Orchestrator runs conversion batches sequentially, one file at a time.
type Orchestrator struct {
	oracle Oracle
	outDir string

	// Seams for tests; production wiring uses the real services.
	inspect   func(data []byte) (*pdfinfo.Info, error)
	renderPDF func(data []byte, opts render.Options) ([]render.PageImage, error)
	assemble  func(paths []string, outPath string) error
}

// New creates an orchestrator writing outputs under outDir.
func New(oracle Oracle, outDir string) *Orchestrator {
	return &Orchestrator{
		oracle:    oracle,
		outDir:    outDir,
		inspect:   pdfinfo.Inspect,
		renderPDF: render.Render,
		assemble:  assemble.ImagesToPDF,
	}
}

// Run executes one batch. The limit check runs once per batch against
// the summed size of every input; the two-part check inside the oracle
// handles both the count and size dimensions.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	total, err := totalInputSize(req.Files)
	if err != nil {
		return nil, err
	}

	decision := o.oracle.CheckLimits(ctx, total)
	if !decision.Allowed {
		return nil, &LimitError{Decision: decision}
	}

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var result *Result
	switch req.Mode {
	case models.ConversionPDFToImages:
		result, err = o.pdfToImages(req)
	case models.ConversionImagesToPDF:
		result, err = o.imagesToPDF(req)
	default:
		return nil, fmt.Errorf("unknown conversion mode %q", req.Mode)
	}
	if err != nil {
		// Partial failure: nothing gets reported.
		return nil, err
	}

	// Every file succeeded — now, and only now, report usage. Exactly
	// one track call for the whole batch: the report endpoint is not
	// idempotent, so per-file reporting would bill a 3-file batch as
	// 3 conversions.
	result.Counter = o.oracle.ReportUsage(ctx, result.Record)
	return result, nil
}

// pdfToImages converts each PDF to per-page images. The whole batch is
// one conversion record — total size, total pages.
func (o *Orchestrator) pdfToImages(req Request) (*Result, error) {
	result := &Result{}
	var totalSize int64
	var totalPages int

	for _, path := range req.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}

		info, err := o.inspect(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}

		pages, err := ParsePageRange(req.PageRange, info.PageCount)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}

		images, err := o.renderPDF(data, render.Options{
			Format:  req.Format,
			Quality: req.Quality,
			Pages:   pages,
		})
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", filepath.Base(path), err)
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, img := range images {
			out := filepath.Join(o.outDir, fmt.Sprintf("%s_page_%d.%s", base, img.PageNumber, img.Ext))
			if err := os.WriteFile(out, img.Data, 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", filepath.Base(out), err)
			}
			result.Outputs = append(result.Outputs, out)
		}

		totalSize += info.Size
		totalPages += len(images)
	}

	result.Record = models.ConversionRecord{
		ConversionType: models.ConversionPDFToImages,
		Filename:       batchFilename(req.Files),
		FileSize:       totalSize,
		PagesConverted: totalPages,
		OutputFormat:   string(formatOrDefault(req.Format)),
		QualitySetting: string(qualityOrDefault(req.Quality)),
		Timestamp:      time.Now().UTC(),
	}
	return result, nil
}

// imagesToPDF assembles the whole batch into one PDF — one logical
// conversion, one record, pages = image count.
func (o *Orchestrator) imagesToPDF(req Request) (*Result, error) {
	name := req.OutputName
	if name == "" {
		name = "converted.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	outPath := filepath.Join(o.outDir, name)

	var totalSize int64
	for _, path := range req.Files {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
		}
		totalSize += fi.Size()
	}

	if err := o.assemble(req.Files, outPath); err != nil {
		return nil, err
	}

	return &Result{
		Outputs: []string{outPath},
		Record: models.ConversionRecord{
			ConversionType: models.ConversionImagesToPDF,
			Filename:       name,
			FileSize:       totalSize,
			PagesConverted: len(req.Files),
			OutputFormat:   "pdf",
			QualitySetting: string(qualityOrDefault(req.Quality)),
			Timestamp:      time.Now().UTC(),
		},
	}, nil
}

// totalInputSize sums the batch — the size check covers everything the
// batch will process, not just its biggest file.
func totalInputSize(paths []string) (int64, error) {
	var total int64
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return 0, fmt.Errorf("cannot access %s: %w", filepath.Base(p), err)
		}
		total += fi.Size()
	}
	return total, nil
}

// batchFilename names a multi-file batch after its first file.
func batchFilename(paths []string) string {
	name := filepath.Base(paths[0])
	if len(paths) > 1 {
		return fmt.Sprintf("%s (+%d more)", name, len(paths)-1)
	}
	return name
}

func formatOrDefault(f render.Format) render.Format {
	if f == "" {
		return render.FormatPNG
	}
	return f
}

func qualityOrDefault(q render.Quality) render.Quality {
	if q == "" {
		return render.QualityMedium
	}
	return q
}
