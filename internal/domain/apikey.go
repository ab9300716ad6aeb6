package domain

import (
	"strings"
	"time"
)

// APIKey is a per-(user, service) third-party credential. The key material is
// stored encrypted; plaintext never touches the database.
type APIKey struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ServiceName  string    `json:"service_name"`
	EncryptedKey string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// validServices is the closed set of integrations an API key may belong to.
var validServices = map[string]struct{}{
	"vapi":       {},
	"twilio":     {},
	"make":       {},
	"hubspot":    {},
	"salesforce": {},
	"pipedrive":  {},
	"zoho":       {},
	"monday":     {},
}

// NormalizeService lowercases a service name and reports whether it belongs
// to the closed allow-list.
func NormalizeService(service string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(service))
	_, ok := validServices[s]
	return s, ok
}

// ValidServices returns the allow-list in a stable order for error messages.
func ValidServices() []string {
	return []string{"vapi", "twilio", "make", "hubspot", "salesforce", "pipedrive", "zoho", "monday"}
}
