package types

import "strings"

// PIIType is a category of sensitive information detected in transcripts
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypeSSN        PIIType = "ssn"
	PIITypeCreditCard PIIType = "credit_card"
	PIITypeIPAddress  PIIType = "ip_address"
	PIITypeAPIKey     PIIType = "api_key"
	PIITypeName       PIIType = "name"
	PIITypeAddress    PIIType = "address"
	PIITypeOther      PIIType = "other"
)

// IsValid checks if the PII type is valid
func (t PIIType) IsValid() bool {
	switch t {
	case PIITypeEmail,
		PIITypePhone,
		PIITypeSSN,
		PIITypeCreditCard,
		PIITypeIPAddress,
		PIITypeAPIKey,
		PIITypeName,
		PIITypeAddress,
		PIITypeOther:
		return true
	default:
		return false
	}
}

// Placeholder returns the marker that replaces a detected span, e.g. [EMAIL_REDACTED]
func (t PIIType) Placeholder() string {
	return "[" + strings.ToUpper(string(t)) + "_REDACTED]"
}

// String returns the string representation of the PII type
func (t PIIType) String() string {
	return string(t)
}
