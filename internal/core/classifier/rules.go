package classifier

import "github.com/kirillkom/filing-assembler/internal/core/domain"

// Rule binds a category to its ordered phrase list. Phrases are lowercase.
type Rule struct {
	Category domain.DocumentType
	Phrases  []string
}

// DefaultRules follows domain.CanonicalDocumentTypes order; ties between
// equal scores resolve to the earlier rule.
var DefaultRules = []Rule{
	{Category: domain.DocNoticeOfApplication, Phrases: []string{
		"notice of application",
		"application for leave and for judicial review",
		"the applicant makes application for",
		"federal court",
		"judicial review",
		"the tribunal",
	}},
	{Category: domain.DocNoticeOfAppeal, Phrases: []string{
		"notice of appeal",
		"refugee appeal division",
		"the appellant",
		"appeal the decision",
		"grounds of appeal",
	}},
	{Category: domain.DocDecisionUnderReview, Phrases: []string{
		"reasons for decision",
		"decision under review",
		"the panel finds",
		"the member finds",
		"refugee protection division",
		"the claim is rejected",
		"the claimant is not a convention refugee",
	}},
	{Category: domain.DocAffidavit, Phrases: []string{
		"affidavit",
		"make oath and say",
		"solemnly affirm",
		"sworn before me",
		"commissioner for taking affidavits",
		"this is exhibit",
	}},
	{Category: domain.DocMemorandum, Phrases: []string{
		"memorandum of argument",
		"memorandum of fact and law",
		"statement of facts",
		"points in issue",
		"order sought",
		"submissions",
	}},
	{Category: domain.DocReplyMemorandum, Phrases: []string{
		"reply memorandum",
		"memorandum in reply",
		"in reply to the respondent",
		"respondent's memorandum",
	}},
	{Category: domain.DocBasisOfClaim, Phrases: []string{
		"basis of claim",
		"boc form",
		"why you are claiming refugee protection",
		"claimant's narrative",
		"persecution",
	}},
	{Category: domain.DocDisclosurePackage, Phrases: []string{
		"disclosure",
		"documentary evidence",
		"index of documents",
		"list of documents",
		"documents to be relied on",
	}},
	{Category: domain.DocIdentityDocument, Phrases: []string{
		"passport",
		"national identity card",
		"date of birth",
		"place of birth",
		"nationality",
	}},
	{Category: domain.DocCountryConditions, Phrases: []string{
		"national documentation package",
		"country conditions",
		"country of origin information",
		"human rights report",
		"response to information request",
	}},
	{Category: domain.DocHearingTranscript, Phrases: []string{
		"transcript",
		"proceedings held",
		"presiding member",
		"counsel for the claimant",
		"by the member",
	}},
	{Category: domain.DocWitnessList, Phrases: []string{
		"witness list",
		"list of witnesses",
		"witness information",
		"purpose of the testimony",
	}},
	{Category: domain.DocTranslation, Phrases: []string{
		"translation",
		"translated from",
		"english translation",
		"original language",
	}},
	{Category: domain.DocTranslatorDeclaration, Phrases: []string{
		"translator's declaration",
		"translator declaration",
		"true and accurate translation",
		"i am proficient in",
		"declaration of translator",
	}},
	{Category: domain.DocCertifiedTribunalRecord, Phrases: []string{
		"certified tribunal record",
		"i hereby certify",
		"true copy of the record",
		"tribunal record",
	}},
}
