package channel

import (
	"context"
	"sort"
)

// Message is the normalized payload handed to every adapter.
type Message struct {
	Title   string
	Content string
}

// Adapter is the uniform contract a channel type implements. Send is a
// single best-effort delivery attempt with no internal retry; transport
// and provider-reported failures both surface as a non-nil error, and the
// dispatch engine converts them into failed delivery results.
type Adapter interface {
	Type() string

	// ConfigSchema lists the credential fields, in display order.
	ConfigSchema() []Field

	// ValidateCredentials reports whether creds satisfy the schema. It is
	// checked synchronously before a channel is stored or updated.
	ValidateCredentials(creds map[string]string) bool

	// Send delivers msg using creds and returns the provider's external
	// message id when it reports one.
	Send(ctx context.Context, msg Message, creds map[string]string) (externalID string, err error)
}

// Table is the immutable adapter lookup, built once at startup and passed
// into the dispatch engine.
type Table struct {
	adapters map[string]Adapter
}

func NewTable(adapters ...Adapter) Table {
	table := Table{adapters: make(map[string]Adapter, len(adapters))}
	for _, adapter := range adapters {
		table.adapters[adapter.Type()] = adapter
	}
	return table
}

func (t Table) Get(channelType string) (Adapter, bool) {
	adapter, ok := t.adapters[channelType]
	return adapter, ok
}

// Types returns the registered channel types, sorted for stable output.
func (t Table) Types() []string {
	types := make([]string, 0, len(t.adapters))
	for channelType := range t.adapters {
		types = append(types, channelType)
	}
	sort.Strings(types)
	return types
}

// requiredFieldsPresent is the schema check shared by every adapter.
func requiredFieldsPresent(schema []Field, creds map[string]string) bool {
	for _, field := range schema {
		if field.Required && creds[field.Name] == "" {
			return false
		}
	}
	return true
}
