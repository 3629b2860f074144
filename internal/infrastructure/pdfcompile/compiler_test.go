package pdfcompile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/kirillkom/filing-assembler/internal/core/assembly"
	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/pdftest"
)

func testProfile() domain.CompilationProfile {
	r := domain.Rule{RuleID: "X-1", Severity: domain.SeverityWarning, SourceURL: "https://example.org", Remediation: "fix"}
	return domain.CompilationProfile{
		ProfileID: "test_profile",
		PaginationRequirements: domain.PaginationRequirements{
			Rule:       r,
			StampPages: true,
		},
		OrderRequirements: domain.OrderRequirements{
			Rule:          r,
			DocumentTypes: []domain.DocumentType{domain.DocNoticeOfApplication, domain.DocIdentityDocument, domain.DocAffidavit},
		},
	}
}

func fixture() (domain.AssemblyPlan, map[string]domain.SourceFile) {
	sources := map[string]domain.SourceFile{
		"aff": {FileID: "aff", Filename: "affidavit.pdf", Payload: pdftest.TextPDF("Affidavit page 1", "Affidavit page 2")},
		"noa": {FileID: "noa", Filename: "notice.pdf", Payload: pdftest.TextPDF("Notice of application")},
		"id":  {FileID: "id", Filename: "passport.png", Payload: pdftest.PNG(60, 80)},
	}
	plan := assembly.Plan(testProfile(), []domain.AssemblyDocument{
		{DocumentID: "aff", DocumentType: domain.DocAffidavit, Filename: "affidavit.pdf", PageCount: 2},
		{DocumentID: "noa", DocumentType: domain.DocNoticeOfApplication, Filename: "notice.pdf", PageCount: 1},
		{DocumentID: "id", DocumentType: domain.DocIdentityDocument, Filename: "passport.png", PageCount: 1},
	})
	return plan, sources
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompileMergesInPlanOrder(t *testing.T) {
	plan, sources := fixture()
	artifact, err := New(Options{StampPages: true}, quiet()).Compile(context.Background(), plan, sources)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if artifact.PageCount != len(plan.PageMap) || artifact.PageCount != 4 {
		t.Fatalf("artifact pages %d, page map %d", artifact.PageCount, len(plan.PageMap))
	}
	if artifact.ContentType != "application/pdf" || len(artifact.SHA256) != 64 {
		t.Fatalf("unexpected artifact metadata %+v", artifact)
	}

	want := []string{
		"1. notice.pdf (notice of application)",
		"2. passport.png (identity document)",
		"3. affidavit.pdf (affidavit)",
	}
	got, err := api.Bookmarks(bytes.NewReader(artifact.Bytes), newConf())
	if err != nil {
		t.Fatalf("Bookmarks() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d bookmarks, got %d", len(want), len(got))
	}
	for i, bm := range got {
		if bm.Title != want[i] {
			t.Fatalf("bookmark %d = %q, want %q", i, bm.Title, want[i])
		}
	}
	if got[2].PageFrom != 3 {
		t.Fatalf("affidavit bookmark targets page %d, want 3", got[2].PageFrom)
	}
}

func TestCompileRejectsMissingSource(t *testing.T) {
	plan, sources := fixture()
	delete(sources, "noa")
	if _, err := New(Options{}, quiet()).Compile(context.Background(), plan, sources); err == nil {
		t.Fatalf("expected error for missing source bytes")
	}
}

func TestCompileRejectsPageCountMismatch(t *testing.T) {
	plan, sources := fixture()
	sources["aff"] = domain.SourceFile{FileID: "aff", Payload: pdftest.TextPDF("only one page")}
	if _, err := New(Options{}, quiet()).Compile(context.Background(), plan, sources); err == nil {
		t.Fatalf("expected error for page count mismatch")
	}
}

func TestCompileRejectsUnreadablePart(t *testing.T) {
	plan, sources := fixture()
	sources["noa"] = domain.SourceFile{FileID: "noa", Payload: []byte("%PDF-1.4 garbage")}
	if _, err := New(Options{}, quiet()).Compile(context.Background(), plan, sources); err == nil {
		t.Fatalf("expected error for unreadable part")
	}
}

func TestBookmarkTitle(t *testing.T) {
	entry := domain.TOCEntry{Position: 7, Filename: "reasons.pdf", DocumentType: domain.DocDecisionUnderReview}
	if got := BookmarkTitle(entry); got != "7. reasons.pdf (decision under review)" {
		t.Fatalf("BookmarkTitle() = %q", got)
	}
	entry.DocumentType = ""
	if got := BookmarkTitle(entry); got != "7. reasons.pdf (unclassified)" {
		t.Fatalf("BookmarkTitle() = %q", got)
	}
}

// pageContents returns, per page, the extracted text plus the decoded page
// and form XObject streams, where pdfcpu places stamps.
func pageContents(t *testing.T, artifact []byte) []string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		t.Fatalf("pdf.NewReader() error = %v", err)
	}
	out := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		var b strings.Builder
		if text, err := page.GetPlainText(nil); err == nil {
			b.WriteString(text)
		}
		appendStream(t, &b, page.V.Key("Contents"))
		xobjects := page.Resources().Key("XObject")
		for _, name := range xobjects.Keys() {
			appendStream(t, &b, xobjects.Key(name))
		}
		out = append(out, b.String())
	}
	return out
}

func appendStream(t *testing.T, b *strings.Builder, v pdf.Value) {
	t.Helper()
	switch v.Kind() {
	case pdf.Array:
		for i := 0; i < v.Len(); i++ {
			appendStream(t, b, v.Index(i))
		}
	case pdf.Stream:
		rc := v.Reader()
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		b.Write(data)
	}
}

func TestCompileStampsEveryPage(t *testing.T) {
	plan, sources := fixture()
	artifact, err := New(Options{StampPages: true}, quiet()).Compile(context.Background(), plan, sources)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	pages := pageContents(t, artifact.Bytes)
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}
	for i, content := range pages {
		want := fmt.Sprintf("Page %d of 4", i+1)
		if !strings.Contains(content, want) {
			t.Fatalf("page %d lacks stamp %q", i+1, want)
		}
	}
}

func TestCompileStampsOnlyWhenProfileAndDeploymentAgree(t *testing.T) {
	cases := []struct {
		name       string
		deployment bool
		profile    bool
	}{
		{"deployment off", false, true},
		{"profile off", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, sources := fixture()
			plan.StampPages = tc.profile
			artifact, err := New(Options{StampPages: tc.deployment}, quiet()).Compile(context.Background(), plan, sources)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			for i, content := range pageContents(t, artifact.Bytes) {
				if strings.Contains(content, "of 4") {
					t.Fatalf("page %d unexpectedly stamped", i+1)
				}
			}
		})
	}
}

func TestVerifyRejectsArtifactThatDisagreesWithPlan(t *testing.T) {
	plan, sources := fixture()
	c := New(Options{}, quiet())
	artifact, err := c.Compile(context.Background(), plan, sources)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, err := c.verify(artifact.Bytes, plan, ExpectedBookmarks(plan)); err != nil {
		t.Fatalf("verify() on untouched plan error = %v", err)
	}

	cases := []struct {
		name   string
		tamper func(plan *domain.AssemblyPlan, expected []domain.Bookmark)
		want   string
	}{
		{
			name: "extra page map entry",
			tamper: func(plan *domain.AssemblyPlan, _ []domain.Bookmark) {
				plan.PageMap = append(plan.PageMap, domain.PageMapEntry{PackagePage: 5, DocumentID: "aff", DocumentPage: 3})
			},
			want: "page map has 5",
		},
		{
			name: "shifted end page",
			tamper: func(plan *domain.AssemblyPlan, _ []domain.Bookmark) {
				plan.TableOfContents[len(plan.TableOfContents)-1].EndPage++
			},
			want: "last entry ends at page 5",
		},
		{
			name: "changed bookmark title",
			tamper: func(_ *domain.AssemblyPlan, expected []domain.Bookmark) {
				expected[1].Title = "2. renamed.png (identity document)"
			},
			want: "bookmark 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tampered := plan
			tampered.PageMap = append([]domain.PageMapEntry(nil), plan.PageMap...)
			tampered.TableOfContents = append([]domain.TOCEntry(nil), plan.TableOfContents...)
			expected := ExpectedBookmarks(plan)
			tc.tamper(&tampered, expected)

			_, err := c.verify(artifact.Bytes, tampered, expected)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("verify() error = %v, want containing %q", err, tc.want)
			}
		})
	}
}
