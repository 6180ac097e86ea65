package models

import (
	"errors"
	"unicode/utf8"
)

// MaxReasonLength bounds the failure reason stored on a result.
const MaxReasonLength = 50

// Status is the outcome of one target.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ExtractionResult holds every field extracted for one ExtractionTarget.
// Each field is a scraped string, NotAvailable or ErrorValue.
type ExtractionResult struct {
	Name string `json:"empresa"`
	URL  string `json:"url"`

	CompanyName  string `json:"company_name"`
	Price        string `json:"price"`
	Change       string `json:"change"`
	ChangePct    string `json:"change_pct"`
	Currency     string `json:"currency"`
	Country      string `json:"country"`
	Exchange     string `json:"exchange"`
	SessionState string `json:"session_state"`
	CloseTime    string `json:"close_time"`
	LogoURL      string `json:"logo_url"`
	ExchangeName string `json:"exchange_name"`

	Status    Status `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// DurationMs is the wall-clock time spent on this target.
	DurationMs int64 `json:"duration_ms"`
}

// field returns a pointer to the struct field backing k, or nil.
func (r *ExtractionResult) field(k FieldKey) *string {
	switch k {
	case FieldCompanyName:
		return &r.CompanyName
	case FieldPrice:
		return &r.Price
	case FieldChange:
		return &r.Change
	case FieldChangePct:
		return &r.ChangePct
	case FieldCurrency:
		return &r.Currency
	case FieldCountry:
		return &r.Country
	case FieldExchange:
		return &r.Exchange
	case FieldSessionState:
		return &r.SessionState
	case FieldCloseTime:
		return &r.CloseTime
	case FieldLogoURL:
		return &r.LogoURL
	case FieldExchangeName:
		return &r.ExchangeName
	}
	return nil
}

// Set stores value under k. Unknown keys are ignored.
func (r *ExtractionResult) Set(k FieldKey, value string) {
	if p := r.field(k); p != nil {
		*p = value
	}
}

// Get returns the value stored under k.
func (r *ExtractionResult) Get(k FieldKey) string {
	if p := r.field(k); p != nil {
		return *p
	}
	return ""
}

// OK reports whether the target was extracted successfully.
func (r *ExtractionResult) OK() bool { return r.Status == StatusOK }

// NewResult returns a result for t with every field set to NotAvailable
// (and the exchange name to UnknownExchange).
func NewResult(t ExtractionTarget) ExtractionResult {
	r := ExtractionResult{Name: t.Name, URL: t.URL}
	for _, k := range AllFields() {
		r.Set(k, NotAvailable)
	}
	r.ExchangeName = UnknownExchange
	return r
}

// FailedResult returns the result for a target whose run aborted.
// Every data field is ErrorValue. The reason is the message of the error
// that caused the failure, truncated to MaxReasonLength runes.
func FailedResult(t ExtractionTarget, err error) ExtractionResult {
	r := ExtractionResult{Name: t.Name, URL: t.URL, Status: StatusFailed}
	for _, k := range AllFields() {
		r.Set(k, ErrorValue)
	}
	if err == nil {
		return r
	}
	r.ErrorCode = ErrCodeInternal
	reason := err.Error()
	var se *ScrapeError
	if errors.As(err, &se) {
		r.ErrorCode = se.Code
		if se.Err != nil {
			reason = se.Err.Error()
		}
	}
	r.Reason = TruncateReason(reason)
	return r
}

// TruncateReason cuts s to at most MaxReasonLength runes.
func TruncateReason(s string) string {
	if utf8.RuneCountInString(s) <= MaxReasonLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxReasonLength])
}
