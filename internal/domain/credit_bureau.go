package domain

import "time"

// CBSource records which provider produced a credit bureau report.
type CBSource string

const (
	CBSourceNICE     CBSource = "NICE"
	CBSourceKCB      CBSource = "KCB"
	CBSourceCache    CBSource = "cache"
	CBSourceFallback CBSource = "fallback"
)

// CBReport is the normalized bureau pull used as scoring input.
type CBReport struct {
	IdentityToken          string    `json:"identityToken"`
	Source                 CBSource  `json:"source"`
	Score                  int       `json:"score"`
	Grade                  string    `json:"grade"`
	Delinquencies12M       int       `json:"delinquencies12m"`
	WorstDelinquencyStatus int       `json:"worstDelinquencyStatus"`
	CurrentDelinquencyDays int       `json:"currentDelinquencyDays"`
	Inquiries3M            int       `json:"inquiries3m"`
	OpenLoans              int       `json:"openLoans"`
	IsFallback             bool      `json:"isFallback"`
	RetrievedAt            time.Time `json:"retrievedAt"`
}

// AltData carries alternative-data signals consented applicants share.
type AltData struct {
	TelecomPaidRegularly  bool  `json:"telecomPaidRegularly"`
	HealthInsuranceMonths int32 `json:"healthInsuranceMonths"`
}

// FallbackCBReport is the conservative default used when both bureaus
// and the cache are unavailable. Scoring continues degraded rather
// than blocking the applicant.
func FallbackCBReport(identityToken string, now time.Time) *CBReport {
	return &CBReport{
		IdentityToken: identityToken,
		Source:        CBSourceFallback,
		Score:         700,
		Grade:         "BB",
		IsFallback:    true,
		RetrievedAt:   now,
	}
}
