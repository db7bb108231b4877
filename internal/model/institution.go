package model

// Institution is a canonical holder entity. Foreign institutions are keyed by
// (Source, ExternalID), the CIK, and are created on first sight; domestic
// institutions are pre-registered.
type Institution struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	CountryCode     string `json:"country_code,omitempty"`
	InstitutionType string `json:"institution_type,omitempty"`
	Source          string `json:"source,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	Active          bool   `json:"active"`
}

// InstitutionAlias maps an alternate name to an institution.
type InstitutionAlias struct {
	InstitutionID int64  `json:"institution_id"`
	Alias         string `json:"alias"`
}
