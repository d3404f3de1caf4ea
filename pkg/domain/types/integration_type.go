package types

import "fmt"

// IntegrationType identifies an external task tracker
type IntegrationType string

const (
	IntegrationTypeAsana  IntegrationType = "asana"
	IntegrationTypeTrello IntegrationType = "trello"
	IntegrationTypeJira   IntegrationType = "jira"
)

// AllIntegrationTypes returns all known integration types, including ones without an adapter
func AllIntegrationTypes() []IntegrationType {
	return []IntegrationType{
		IntegrationTypeAsana,
		IntegrationTypeTrello,
		IntegrationTypeJira,
	}
}

// IsValid checks if the integration type is known
func (t IntegrationType) IsValid() bool {
	switch t {
	case IntegrationTypeAsana,
		IntegrationTypeTrello,
		IntegrationTypeJira:
		return true
	default:
		return false
	}
}

// String returns the string representation of the integration type
func (t IntegrationType) String() string {
	return string(t)
}

// ParseIntegrationType parses a string into an IntegrationType
func ParseIntegrationType(s string) (IntegrationType, error) {
	t := IntegrationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid integration type: %s", s)
	}
	return t, nil
}
