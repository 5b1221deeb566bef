package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
	"github.com/pagecraft-labs/file-converter-api/internal/quota"
	"github.com/pagecraft-labs/file-converter-api/internal/services/pdfinfo"
	"github.com/pagecraft-labs/file-converter-api/internal/services/render"
)

// fakeOracle records check and report calls.
type fakeOracle struct {
	decision    plan.Decision
	checkedSize int64
	reports     []models.ConversionRecord
	used        int
}

func (f *fakeOracle) CheckLimits(ctx context.Context, fileSize int64) plan.Decision {
	f.checkedSize = fileSize
	return f.decision
}

func (f *fakeOracle) ReportUsage(ctx context.Context, rec models.ConversionRecord) quota.UpdatedCounter {
	f.reports = append(f.reports, rec)
	f.used++
	return quota.UpdatedCounter{Used: f.used, Limit: 3, Remaining: 3 - f.used}
}

func allowAll() plan.Decision {
	return plan.Decision{Allowed: true, Remaining: 3, Reason: plan.ReasonOK, MaxFileSize: plan.GuestMaxFileSize}
}

// newTestOrchestrator stubs the conversion backends so tests exercise
// ordering and accounting, not MuPDF.
func newTestOrchestrator(t *testing.T, oracle Oracle) *Orchestrator {
	t.Helper()
	o := New(oracle, t.TempDir())
	o.inspect = func(data []byte) (*pdfinfo.Info, error) {
		return &pdfinfo.Info{PageCount: 3, Size: int64(len(data))}, nil
	}
	o.renderPDF = func(data []byte, opts render.Options) ([]render.PageImage, error) {
		pages := opts.Pages
		if len(pages) == 0 {
			pages = []int{1, 2, 3}
		}
		var out []render.PageImage
		for _, p := range pages {
			out = append(out, render.PageImage{PageNumber: p, Data: []byte("img"), Ext: "png"})
		}
		return out, nil
	}
	o.assemble = func(paths []string, outPath string) error {
		return os.WriteFile(outPath, []byte("%PDF-fake"), 0o644)
	}
	return o
}

func writeInputs(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("input-data"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestRunReportsBatchAsOneConversion(t *testing.T) {
	oracle := &fakeOracle{decision: allowAll()}
	o := newTestOrchestrator(t, oracle)

	files := writeInputs(t, "a.pdf", "b.pdf", "c.pdf")
	result, err := o.Run(context.Background(), Request{
		Mode:  models.ConversionPDFToImages,
		Files: files,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The track endpoint is not idempotent: a 3-file batch must be
	// reported as exactly one conversion, never three.
	if len(oracle.reports) != 1 {
		t.Fatalf("reported %d records for one batch, want exactly 1", len(oracle.reports))
	}
	rec := oracle.reports[0]
	if rec.Filename != "a.pdf (+2 more)" {
		t.Errorf("batch filename = %q", rec.Filename)
	}
	// 3 PDFs x 3 pages, aggregated into the one record.
	if rec.PagesConverted != 9 {
		t.Errorf("pages converted = %d, want 9", rec.PagesConverted)
	}
	if result.Counter.Used != 1 {
		t.Errorf("final counter used = %d, want 1", result.Counter.Used)
	}
	if len(result.Outputs) != 9 {
		t.Errorf("outputs = %d, want 9", len(result.Outputs))
	}
}

func TestRunSizeCheckCoversWholeBatch(t *testing.T) {
	oracle := &fakeOracle{decision: allowAll()}
	o := newTestOrchestrator(t, oracle)

	// Three inputs of identical size: the pre-flight check must see
	// their sum, not the largest single file.
	files := writeInputs(t, "a.pdf", "b.pdf", "c.pdf")
	var want int64
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			t.Fatal(err)
		}
		want += fi.Size()
	}

	if _, err := o.Run(context.Background(), Request{
		Mode:  models.ConversionPDFToImages,
		Files: files,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if oracle.checkedSize != want {
		t.Errorf("checked size = %d, want batch total %d", oracle.checkedSize, want)
	}
}

func TestRunDeniedByOracleReportsNothing(t *testing.T) {
	oracle := &fakeOracle{decision: plan.Decision{
		Allowed: false, Reason: plan.ReasonGuestLimitReached, MaxFileSize: plan.GuestMaxFileSize,
	}}
	o := newTestOrchestrator(t, oracle)

	files := writeInputs(t, "a.pdf")
	_, err := o.Run(context.Background(), Request{Mode: models.ConversionPDFToImages, Files: files})

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want *LimitError", err)
	}
	if limitErr.Decision.Reason != plan.ReasonGuestLimitReached {
		t.Errorf("reason = %q", limitErr.Decision.Reason)
	}
	if len(oracle.reports) != 0 {
		t.Errorf("denied batch reported %d records, want 0", len(oracle.reports))
	}
}

func TestRunPartialFailureReportsNothing(t *testing.T) {
	oracle := &fakeOracle{decision: allowAll()}
	o := newTestOrchestrator(t, oracle)

	// Second file fails to render: the batch must report zero usage.
	calls := 0
	o.renderPDF = func(data []byte, opts render.Options) ([]render.PageImage, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("render blew up")
		}
		return []render.PageImage{{PageNumber: 1, Data: []byte("img"), Ext: "png"}}, nil
	}

	files := writeInputs(t, "ok.pdf", "bad.pdf")
	_, err := o.Run(context.Background(), Request{Mode: models.ConversionPDFToImages, Files: files})
	if err == nil {
		t.Fatal("Run succeeded despite a failing file")
	}
	if len(oracle.reports) != 0 {
		t.Errorf("partially-failed batch reported %d records, want 0", len(oracle.reports))
	}
}

func TestRunImagesToPDFIsOneRecord(t *testing.T) {
	oracle := &fakeOracle{decision: allowAll()}
	o := newTestOrchestrator(t, oracle)

	files := writeInputs(t, "1.png", "2.png", "3.png")
	result, err := o.Run(context.Background(), Request{
		Mode:       models.ConversionImagesToPDF,
		Files:      files,
		OutputName: "album",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(oracle.reports) != 1 {
		t.Fatalf("reported %d records, want 1 (whole batch is one conversion)", len(oracle.reports))
	}
	rec := oracle.reports[0]
	if rec.PagesConverted != 3 || rec.OutputFormat != "pdf" || rec.Filename != "album.pdf" {
		t.Errorf("record = %+v", rec)
	}
	if len(result.Outputs) != 1 || filepath.Base(result.Outputs[0]) != "album.pdf" {
		t.Errorf("outputs = %v", result.Outputs)
	}
}

func TestRunEmptyBatchRejected(t *testing.T) {
	o := newTestOrchestrator(t, &fakeOracle{decision: allowAll()})
	if _, err := o.Run(context.Background(), Request{Mode: models.ConversionPDFToImages}); err == nil {
		t.Error("empty batch accepted")
	}
}

func TestRunPageRangeSelection(t *testing.T) {
	oracle := &fakeOracle{decision: allowAll()}
	o := newTestOrchestrator(t, oracle)

	var gotPages []int
	o.renderPDF = func(data []byte, opts render.Options) ([]render.PageImage, error) {
		gotPages = opts.Pages
		var out []render.PageImage
		for _, p := range opts.Pages {
			out = append(out, render.PageImage{PageNumber: p, Data: []byte("img"), Ext: "png"})
		}
		return out, nil
	}

	files := writeInputs(t, "doc.pdf")
	result, err := o.Run(context.Background(), Request{
		Mode:      models.ConversionPDFToImages,
		Files:     files,
		PageRange: "1-2",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gotPages) != 2 || gotPages[0] != 1 || gotPages[1] != 2 {
		t.Errorf("selected pages = %v, want [1 2]", gotPages)
	}
	if oracle.reports[0].PagesConverted != 2 {
		t.Errorf("pages converted = %d, want 2", oracle.reports[0].PagesConverted)
	}
	if len(result.Outputs) != 2 {
		t.Errorf("outputs = %d, want 2", len(result.Outputs))
	}
}
