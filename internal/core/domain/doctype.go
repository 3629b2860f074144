package domain

import "strings"

// DocumentType is a canonical filing document type name.
type DocumentType string

const (
	DocNoticeOfApplication     DocumentType = "notice_of_application"
	DocNoticeOfAppeal          DocumentType = "notice_of_appeal"
	DocDecisionUnderReview     DocumentType = "decision_under_review"
	DocAffidavit               DocumentType = "affidavit"
	DocMemorandum              DocumentType = "memorandum"
	DocReplyMemorandum         DocumentType = "reply_memorandum"
	DocBasisOfClaim            DocumentType = "basis_of_claim"
	DocDisclosurePackage       DocumentType = "disclosure_package"
	DocIdentityDocument        DocumentType = "identity_document"
	DocCountryConditions       DocumentType = "country_conditions_evidence"
	DocHearingTranscript       DocumentType = "hearing_transcript"
	DocWitnessList             DocumentType = "witness_list"
	DocTranslation             DocumentType = "translation"
	DocTranslatorDeclaration   DocumentType = "translator_declaration"
	DocCertifiedTribunalRecord DocumentType = "certified_tribunal_record"

	// DocUnclassified marks text that matched no category. It is never a
	// catalog document type.
	DocUnclassified DocumentType = "unclassified"
)

// CanonicalDocumentTypes lists every type a catalog may reference, in
// declaration order. Classifier tie-breaks follow this order.
var CanonicalDocumentTypes = []DocumentType{
	DocNoticeOfApplication,
	DocNoticeOfAppeal,
	DocDecisionUnderReview,
	DocAffidavit,
	DocMemorandum,
	DocReplyMemorandum,
	DocBasisOfClaim,
	DocDisclosurePackage,
	DocIdentityDocument,
	DocCountryConditions,
	DocHearingTranscript,
	DocWitnessList,
	DocTranslation,
	DocTranslatorDeclaration,
	DocCertifiedTribunalRecord,
}

var canonicalDocumentTypeSet = func() map[DocumentType]struct{} {
	out := make(map[DocumentType]struct{}, len(CanonicalDocumentTypes))
	for _, t := range CanonicalDocumentTypes {
		out[t] = struct{}{}
	}
	return out
}()

func IsCanonicalDocumentType(t DocumentType) bool {
	_, ok := canonicalDocumentTypeSet[t]
	return ok
}

// Label renders the type for human-facing output ("decision_under_review" ->
// "decision under review").
func (t DocumentType) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}
