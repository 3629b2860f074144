package readiness

import "github.com/kirillkom/filing-assembler/internal/core/domain"

// RecordSections groups rule slots by the profile's section map. Document
// ids follow assembly order.
func RecordSections(profile domain.CompilationProfile, results []domain.IntakeResult, plan domain.AssemblyPlan) []domain.RecordSection {
	classified := ClassifiedTypes(results)
	slots := requiredSlots(profile, classified)

	filesByType := make(map[domain.DocumentType][]string)
	for _, entry := range plan.TableOfContents {
		filesByType[entry.DocumentType] = append(filesByType[entry.DocumentType], entry.DocumentID)
	}

	sections := make([]domain.RecordSection, 0, len(profile.RecordSections))
	for _, spec := range profile.RecordSections {
		section := domain.RecordSection{
			SectionID:   spec.SectionID,
			Title:       spec.Title,
			Slots:       []domain.RecordSlot{},
			DocumentIDs: []string{},
		}
		members := make(map[domain.DocumentType]struct{}, len(spec.DocumentTypes))
		for _, t := range spec.DocumentTypes {
			members[t] = struct{}{}
		}

		missing := false
		for _, slot := range slots {
			if _, ok := members[slot.docType]; !ok {
				continue
			}
			status := domain.SlotPresent
			if _, ok := classified[slot.docType]; !ok {
				status = domain.SlotMissing
				missing = true
			}
			section.Slots = append(section.Slots, domain.RecordSlot{
				DocumentType: slot.docType,
				RuleID:       slot.ruleID,
				Severity:     slot.severity,
				Status:       status,
				FileIDs:      filesByType[slot.docType],
			})
		}
		for _, entry := range plan.TableOfContents {
			if _, ok := members[entry.DocumentType]; ok {
				section.DocumentIDs = append(section.DocumentIDs, entry.DocumentID)
			}
		}

		switch {
		case missing:
			section.Status = domain.SectionMissing
		case len(section.Slots) > 0 || len(section.DocumentIDs) > 0:
			section.Status = domain.SectionComplete
		default:
			section.Status = domain.SectionNotRequired
		}
		sections = append(sections, section)
	}
	return sections
}
