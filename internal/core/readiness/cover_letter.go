package readiness

import (
	"strings"
	"text/template"
	"time"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

var coverLetterTemplate = template.Must(template.New("cover_letter").Funcs(template.FuncMap{
	"label": func(t domain.DocumentType) string { return t.Label() },
}).Parse(`{{.Date}}

To the Registry
Forum: {{.Forum}}

Re: Matter {{.MatterID}}: {{.Title}}

Please find enclosed the following documents for filing ({{.TotalPages}} pages in total):
{{range .TOC}}
  {{.Position}}. {{.Filename}} ({{label .DocumentType}}), pages {{.StartPage}}-{{.EndPage}}
{{- end}}
{{if .MissingRequired}}
The following required documents are still outstanding:
{{range .MissingRequired}}
  - {{label .}}
{{- end}}
{{end}}
{{- if .MissingRecommended}}
The following recommended documents have not been provided:
{{range .MissingRecommended}}
  - {{label .}}
{{- end}}
{{end}}
{{- if .DeadlineDate}}
Filing deadline: {{.DeadlineDate}} ({{.DeadlineRule}})
{{end}}
Respectfully submitted,

Counsel for the {{.Party}}
`))

type coverLetterData struct {
	Date               string
	Forum              string
	MatterID           string
	Title              string
	TotalPages         int
	TOC                []domain.TOCEntry
	MissingRequired    []domain.DocumentType
	MissingRecommended []domain.DocumentType
	DeadlineDate       string
	DeadlineRule       string
	Party              string
}

// CoverLetter renders a plain-text draft listing the table of contents,
// outstanding items and the filing deadline when known.
func CoverLetter(profile domain.CompilationProfile, r *domain.Readiness, plan domain.AssemblyPlan, now time.Time) string {
	data := coverLetterData{
		Date:               now.UTC().Format("January 2, 2006"),
		Forum:              profile.Forum,
		MatterID:           r.MatterID,
		Title:              profile.Title,
		TotalPages:         plan.TotalPages,
		TOC:                plan.TableOfContents,
		MissingRequired:    r.MissingRequiredItems,
		MissingRecommended: r.MissingRecommendedItems,
		Party:              partyFor(profile),
	}
	if data.Title == "" {
		data.Title = profile.ProfileID
	}
	if r.Deadline != nil && r.Deadline.DeadlineDate != "" {
		data.DeadlineDate = r.Deadline.DeadlineDate
		data.DeadlineRule = r.Deadline.RuleID
	}

	var b strings.Builder
	if err := coverLetterTemplate.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}

func partyFor(profile domain.CompilationProfile) string {
	for _, t := range profile.OrderRequirements.DocumentTypes {
		switch t {
		case domain.DocNoticeOfAppeal:
			return "Appellant"
		case domain.DocDisclosurePackage, domain.DocBasisOfClaim:
			return "Claimant"
		}
	}
	return "Applicant"
}
