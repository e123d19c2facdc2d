package channel

import (
	"strings"
	"time"
)

// Field describes one credential field an adapter expects. Ordered slices
// of these drive both validation and outward masking.
type Field struct {
	Name      string `json:"name"`
	Required  bool   `json:"required"`
	Sensitive bool   `json:"sensitive"`
}

// Channel is one configured delivery destination owned by an account.
// Credentials must have passed the adapter's validation for Type before
// the channel was persisted.
type Channel struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"accountId"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

const maskVisibleEdge = 4

// MaskCredential hides the middle of a secret when echoing configuration
// outward. Values of 8 chars or fewer become all asterisks of the same
// length; longer values keep the first and last 4 chars visible.
func MaskCredential(value string) string {
	runes := []rune(value)
	if len(runes) <= 2*maskVisibleEdge {
		return strings.Repeat("*", len(runes))
	}
	masked := string(runes[:maskVisibleEdge]) +
		strings.Repeat("*", len(runes)-2*maskVisibleEdge) +
		string(runes[len(runes)-maskVisibleEdge:])
	return masked
}

// MaskedCredentials returns a copy of creds with every field the schema
// marks sensitive run through MaskCredential. Fields not covered by the
// schema are masked too, erring on the safe side.
func MaskedCredentials(creds map[string]string, schema []Field) map[string]string {
	sensitive := make(map[string]bool, len(schema))
	known := make(map[string]bool, len(schema))
	for _, field := range schema {
		known[field.Name] = true
		sensitive[field.Name] = field.Sensitive
	}

	out := make(map[string]string, len(creds))
	for name, value := range creds {
		if !known[name] || sensitive[name] {
			out[name] = MaskCredential(value)
		} else {
			out[name] = value
		}
	}
	return out
}
