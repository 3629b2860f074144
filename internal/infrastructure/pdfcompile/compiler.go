// Package pdfcompile merges the documents of an assembly plan into one PDF
// with bookmarks and page stamps, and verifies the output against the plan.
package pdfcompile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/extractor"
)

const (
	stampText = "Page %p of %P"
	stampDesc = "fontname:Helvetica, points:9, position:br, offset:-24 18, scalefactor:1 abs, rotation:0, fillcolor:#000000"
)

var disableConfigDir sync.Once

// Options are deployment switches. StampPages enables stamping for plans
// whose profile asks for it; it never forces stamps onto other plans.
type Options struct {
	StampPages bool
}

type Compiler struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &Compiler{opts: opts, logger: logger}
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// BookmarkTitle is the outline title of one table of contents entry.
func BookmarkTitle(entry domain.TOCEntry) string {
	label := entry.DocumentType.Label()
	if label == "" {
		label = string(domain.DocUnclassified)
	}
	return fmt.Sprintf("%d. %s (%s)", entry.Position, entry.Filename, label)
}

// ExpectedBookmarks derives the outline the artifact must carry.
func ExpectedBookmarks(plan domain.AssemblyPlan) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(plan.TableOfContents))
	for _, entry := range plan.TableOfContents {
		out = append(out, domain.Bookmark{Level: 1, Title: BookmarkTitle(entry), TargetPage: entry.StartPage})
	}
	return out
}

func (c *Compiler) Compile(ctx context.Context, plan domain.AssemblyPlan, sources map[string]domain.SourceFile) (*domain.CompiledArtifact, error) {
	if len(plan.TableOfContents) == 0 {
		return nil, errors.New("plan has no documents")
	}

	parts := make([]io.ReadSeeker, 0, len(plan.TableOfContents))
	for _, entry := range plan.TableOfContents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.PageCount <= 0 {
			return nil, fmt.Errorf("document %s has no pages", entry.DocumentID)
		}
		src, ok := sources[entry.DocumentID]
		if !ok || len(src.Payload) == 0 {
			return nil, fmt.Errorf("source bytes for document %s unavailable", entry.DocumentID)
		}
		part, err := asPDF(src.Payload)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", entry.DocumentID, err)
		}
		pages, err := api.PageCount(bytes.NewReader(part), newConf())
		if err != nil {
			return nil, fmt.Errorf("document %s: count pages: %w", entry.DocumentID, err)
		}
		if pages != entry.PageCount {
			return nil, fmt.Errorf("document %s has %d pages, plan expects %d", entry.DocumentID, pages, entry.PageCount)
		}
		parts = append(parts, bytes.NewReader(part))
	}

	var merged bytes.Buffer
	if err := api.MergeRaw(parts, &merged, false, newConf()); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	out := merged.Bytes()

	if c.opts.StampPages && plan.StampPages {
		stamped, err := stamp(out)
		if err != nil {
			return nil, err
		}
		out = stamped
	}

	expected := ExpectedBookmarks(plan)
	out, err := addBookmarks(out, expected)
	if err != nil {
		return nil, err
	}

	pageCount, err := c.verify(out, plan, expected)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(out)
	c.logger.Debug("package compiled", "profile_id", plan.ProfileID, "pages", pageCount, "bytes", len(out))
	return &domain.CompiledArtifact{
		Filename:    plan.ProfileID + "_package.pdf",
		ContentType: "application/pdf",
		PageCount:   pageCount,
		SHA256:      hex.EncodeToString(sum[:]),
		Bookmarks:   expected,
		Bytes:       out,
	}, nil
}

// verify re-reads the artifact and checks page count and outline against
// the plan.
func (c *Compiler) verify(artifact []byte, plan domain.AssemblyPlan, expected []domain.Bookmark) (int, error) {
	pageCount, err := api.PageCount(bytes.NewReader(artifact), newConf())
	if err != nil {
		return 0, fmt.Errorf("verify: count pages: %w", err)
	}
	if pageCount != len(plan.PageMap) {
		return 0, fmt.Errorf("verify: artifact has %d pages, page map has %d", pageCount, len(plan.PageMap))
	}
	last := plan.TableOfContents[len(plan.TableOfContents)-1]
	if last.EndPage != pageCount {
		return 0, fmt.Errorf("verify: last entry ends at page %d, artifact has %d", last.EndPage, pageCount)
	}

	got, err := api.Bookmarks(bytes.NewReader(artifact), newConf())
	if err != nil {
		return 0, fmt.Errorf("verify: read bookmarks: %w", err)
	}
	if len(got) != len(expected) {
		return 0, fmt.Errorf("verify: artifact has %d bookmarks, expected %d", len(got), len(expected))
	}
	for i, bm := range got {
		want := expected[i]
		if bm.Title != want.Title || bm.PageFrom != want.TargetPage || len(bm.Kids) != 0 {
			return 0, fmt.Errorf("verify: bookmark %d is %q -> %d, expected %q -> %d",
				i+1, bm.Title, bm.PageFrom, want.Title, want.TargetPage)
		}
	}
	return pageCount, nil
}

// asPDF passes PDFs through and converts images into one-page PDFs.
func asPDF(payload []byte) ([]byte, error) {
	format := extractor.Sniff(payload)
	switch {
	case format == domain.FormatPDF:
		return payload, nil
	case format.IsImage():
		var out bytes.Buffer
		if err := api.ImportImages(nil, &out, []io.Reader{bytes.NewReader(payload)}, nil, newConf()); err != nil {
			return nil, fmt.Errorf("rasterize image: %w", err)
		}
		return out.Bytes(), nil
	default:
		return nil, errors.New("unsupported payload format")
	}
}

func stamp(in []byte) ([]byte, error) {
	wm, err := api.TextWatermark(stampText, stampDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(in), &out, nil, wm, newConf()); err != nil {
		return nil, fmt.Errorf("stamp: %w", err)
	}
	return out.Bytes(), nil
}

func addBookmarks(in []byte, expected []domain.Bookmark) ([]byte, error) {
	bms := make([]pdfcpu.Bookmark, 0, len(expected))
	for _, b := range expected {
		bms = append(bms, pdfcpu.Bookmark{Title: b.Title, PageFrom: b.TargetPage})
	}
	var out bytes.Buffer
	if err := api.AddBookmarks(bytes.NewReader(in), &out, bms, true, newConf()); err != nil {
		return nil, fmt.Errorf("bookmarks: %w", err)
	}
	return out.Bytes(), nil
}
