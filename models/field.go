package models

// FieldKey identifies one logical value extracted from a quote page.
type FieldKey int

const (
	FieldCompanyName FieldKey = iota
	FieldPrice
	FieldChange
	FieldChangePct
	FieldCurrency
	FieldCountry
	FieldExchange
	FieldSessionState
	FieldCloseTime
	FieldLogoURL
	FieldExchangeName
)

// Sentinel field values.
const (
	// NotAvailable marks a field none of whose strategies matched.
	NotAvailable = "N/A"

	// UnknownExchange is the default for FieldExchangeName.
	UnknownExchange = "Unknown"

	// ErrorValue fills every data field of a failed target.
	ErrorValue = "Error"
)

var fieldNames = [...]string{
	FieldCompanyName:  "company_name",
	FieldPrice:        "price",
	FieldChange:       "change",
	FieldChangePct:    "change_pct",
	FieldCurrency:     "currency",
	FieldCountry:      "country",
	FieldExchange:     "exchange",
	FieldSessionState: "session_state",
	FieldCloseTime:    "close_time",
	FieldLogoURL:      "logo_url",
	FieldExchangeName: "exchange_name",
}

// AllFields lists every FieldKey in declaration order.
func AllFields() []FieldKey {
	keys := make([]FieldKey, len(fieldNames))
	for i := range fieldNames {
		keys[i] = FieldKey(i)
	}
	return keys
}

// String returns the JSON name of the field.
func (k FieldKey) String() string {
	if k < 0 || int(k) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[k]
}
