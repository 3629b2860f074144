// Package assembly orders classified documents by profile rules and computes
// the table of contents, page map and rule violations of a package. Plan is
// a pure function of its inputs.
package assembly

import (
	"fmt"
	"sort"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

// Plan orders docs per the profile's canonical sequence, paginates them from
// page 1 and validates the result against the profile rules.
func Plan(profile domain.CompilationProfile, docs []domain.AssemblyDocument) domain.AssemblyPlan {
	ordered := Order(profile, docs)

	toc := make([]domain.TOCEntry, 0, len(ordered))
	pageMap := make([]domain.PageMapEntry, 0, totalPages(ordered))
	end := 0
	for i, doc := range ordered {
		pages := max(doc.PageCount, 0)
		start := end + 1
		end = start + pages - 1
		toc = append(toc, domain.TOCEntry{
			Position:     i + 1,
			DocumentID:   doc.DocumentID,
			DocumentType: doc.DocumentType,
			Filename:     doc.Filename,
			StartPage:    start,
			EndPage:      end,
			PageCount:    pages,
		})
		for p := 1; p <= pages; p++ {
			pageMap = append(pageMap, domain.PageMapEntry{
				PackagePage:  start + p - 1,
				DocumentID:   doc.DocumentID,
				DocumentType: doc.DocumentType,
				DocumentPage: p,
			})
		}
	}

	return domain.AssemblyPlan{
		ProfileID:       profile.ProfileID,
		TableOfContents: toc,
		PageMap:         pageMap,
		Violations:      Validate(profile, ordered, len(pageMap)),
		TotalPages:      len(pageMap),
		StampPages:      profile.PaginationRequirements.StampPages,
	}
}

// Order returns a copy of docs sorted by (profile order index, document_type,
// filename, document_id). Types outside the canonical sequence rank after
// every known type.
func Order(profile domain.CompilationProfile, docs []domain.AssemblyDocument) []domain.AssemblyDocument {
	ordered := append([]domain.AssemblyDocument(nil), docs...)
	unseen := len(profile.OrderRequirements.DocumentTypes)
	rank := func(t domain.DocumentType) int {
		if i := profile.OrderIndex(t); i >= 0 {
			return i
		}
		return unseen
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := rank(a.DocumentType), rank(b.DocumentType); ra != rb {
			return ra < rb
		}
		if a.DocumentType != b.DocumentType {
			return a.DocumentType < b.DocumentType
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.DocumentID < b.DocumentID
	})
	return ordered
}

// Validate checks the ordered documents against required, conditional,
// order and pagination rules.
func Validate(profile domain.CompilationProfile, ordered []domain.AssemblyDocument, pageCount int) []domain.Violation {
	present := make(map[domain.DocumentType]struct{}, len(ordered))
	for _, doc := range ordered {
		if doc.DocumentType != "" {
			present[doc.DocumentType] = struct{}{}
		}
	}

	var out []domain.Violation
	for _, req := range profile.RequiredDocuments {
		if _, ok := present[req.DocumentType]; ok {
			continue
		}
		out = append(out, violation(req.Rule, domain.ViolationMissingRequired, req.DocumentType, "",
			fmt.Sprintf("required document %q is missing", req.DocumentType.Label())))
	}
	for _, cond := range profile.ConditionalRules {
		if _, active := present[cond.WhenDocumentType]; !active {
			continue
		}
		if _, ok := present[cond.RequiresDocumentType]; ok {
			continue
		}
		out = append(out, violation(cond.Rule, domain.ViolationMissingConditional, cond.RequiresDocumentType, "",
			fmt.Sprintf("%q requires %q", cond.WhenDocumentType.Label(), cond.RequiresDocumentType.Label())))
	}

	order := profile.OrderRequirements
	pagination := profile.PaginationRequirements
	for _, doc := range ordered {
		if profile.OrderIndex(doc.DocumentType) < 0 {
			out = append(out, violation(order.Rule, domain.ViolationOutsideOrder, doc.DocumentType, doc.DocumentID,
				fmt.Sprintf("%s (%s) has no place in the prescribed order", doc.Filename, displayType(doc.DocumentType))))
		}
		if doc.PageCount <= 0 {
			out = append(out, violation(pagination.Rule, domain.ViolationEmptyDocument, doc.DocumentType, doc.DocumentID,
				fmt.Sprintf("%s has no pages", doc.Filename)))
		}
	}
	if pagination.MaxTotalPages > 0 && pageCount > pagination.MaxTotalPages {
		out = append(out, violation(pagination.Rule, domain.ViolationPageLimitExceeded, "", "",
			fmt.Sprintf("package has %d pages, limit is %d", pageCount, pagination.MaxTotalPages)))
	}

	SortViolations(out)
	if out == nil {
		out = []domain.Violation{}
	}
	return out
}

// SortViolations orders blocking before warning, then by code, rule id,
// source url and document id.
func SortViolations(v []domain.Violation) {
	sort.SliceStable(v, func(i, j int) bool {
		a, b := v[i], v[j]
		if sa, sb := severityRank(a.Severity), severityRank(b.Severity); sa != sb {
			return sa < sb
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.SourceURL != b.SourceURL {
			return a.SourceURL < b.SourceURL
		}
		return a.DocumentID < b.DocumentID
	})
}

func severityRank(s domain.Severity) int {
	if s == domain.SeverityBlocking {
		return 0
	}
	return 1
}

func violation(rule domain.Rule, code string, docType domain.DocumentType, docID, message string) domain.Violation {
	return domain.Violation{
		Code:         code,
		Severity:     rule.Severity,
		RuleID:       rule.RuleID,
		SourceURL:    rule.SourceURL,
		Remediation:  rule.Remediation,
		DocumentType: docType,
		DocumentID:   docID,
		Message:      message,
	}
}

func displayType(t domain.DocumentType) string {
	if t == "" {
		return "unclassified"
	}
	return t.Label()
}

func totalPages(docs []domain.AssemblyDocument) int {
	n := 0
	for _, d := range docs {
		n += max(d.PageCount, 0)
	}
	return n
}
