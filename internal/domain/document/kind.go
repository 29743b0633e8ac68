package document

// Source identifies the collaborator that produced a document.
type Source string

// Known sources.
const (
	SourceClausesJSON      Source = "clauses_json"
	SourceCUAD             Source = "cuad"
	SourceCommonPaper      Source = "common_paper"
	SourceStatutes         Source = "statutes"
	SourceOPP115           Source = "opp115"
	SourceOpenTermsArchive Source = "open_terms_archive"
	SourceLegalBench       Source = "legalbench"
)

var validSources = map[Source]bool{
	SourceClausesJSON: true, SourceCUAD: true, SourceCommonPaper: true, SourceStatutes: true,
	SourceOPP115: true, SourceOpenTermsArchive: true, SourceLegalBench: true,
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool { return validSources[s] }

// DocType is the structural kind of a document.
type DocType string

// Known document types.
const (
	TypeClause         DocType = "clause"
	TypeStatute        DocType = "statute"
	TypePlaybook       DocType = "playbook"
	TypePrivacyPolicy  DocType = "privacy_policy"
	TypeTermsOfService DocType = "terms_of_service"
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	_, ok := metadataKeys[t]
	return ok
}

// Metadata keys.
const (
	KeyCategory      = "category"
	KeyNotes         = "notes"
	KeyPracticeArea  = "practice_area"
	KeyJurisdiction  = "jurisdiction"
	KeyClauseType    = "clause_type"
	KeyRiskLevel     = "risk_level"
	KeyContractType  = "contract_type"
	KeyCitation      = "citation"
	KeyEffectiveDate = "effective_date"
	KeyPosition      = "position"
	KeyCompany       = "company"
)

var commonKeys = []string{KeyCategory, KeyNotes, KeyPracticeArea, KeyJurisdiction}

// metadataKeys is the recognized metadata key set per document type.
var metadataKeys = map[DocType]map[string]bool{
	TypeClause:         keySet(KeyClauseType, KeyRiskLevel, KeyContractType),
	TypeStatute:        keySet(KeyCitation, KeyEffectiveDate),
	TypePlaybook:       keySet(KeyClauseType, KeyPosition, KeyRiskLevel),
	TypePrivacyPolicy:  keySet(KeyCompany, KeyCitation),
	TypeTermsOfService: keySet(KeyCompany, KeyCitation),
}

func keySet(extra ...string) map[string]bool {
	m := make(map[string]bool, len(commonKeys)+len(extra))
	for _, k := range commonKeys {
		m[k] = true
	}
	for _, k := range extra {
		m[k] = true
	}
	return m
}

// AllowsKey reports whether key is recognized metadata for t.
func (t DocType) AllowsKey(key string) bool { return metadataKeys[t][key] }

var validRiskLevels = map[string]bool{"low": true, "medium": true, "high": true}
