package config

import (
	"fmt"
	"strings"
)

// SegregatedAccount describes one provider-side pooled account and the
// grouping id the local virtual IBAN accounts reference.
type SegregatedAccount struct {
	ID                string // Local grouping id stored on each virtual IBAN account
	ProviderAccountID string // Account id used against the provider APIs
	Currency          string
}

// ParseSegregatedAccounts parses "id:providerAccountId:CUR" entries separated by commas.
func ParseSegregatedAccounts(raw string) ([]SegregatedAccount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var accounts []SegregatedAccount
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("segregated account %q must have the form id:providerAccountId:currency", entry)
		}
		sa := SegregatedAccount{
			ID:                strings.TrimSpace(parts[0]),
			ProviderAccountID: strings.TrimSpace(parts[1]),
			Currency:          strings.ToUpper(strings.TrimSpace(parts[2])),
		}
		if sa.ID == "" || sa.ProviderAccountID == "" {
			return nil, fmt.Errorf("segregated account %q has an empty id", entry)
		}
		if len(sa.Currency) != 3 {
			return nil, fmt.Errorf("segregated account %q must use a 3-letter currency code", entry)
		}
		accounts = append(accounts, sa)
	}
	return accounts, nil
}

// FindSegregatedAccount returns the grouping with the given local or provider id.
func (c *Config) FindSegregatedAccount(id string) (SegregatedAccount, bool) {
	for _, sa := range c.SegregatedAccounts {
		if sa.ID == id || sa.ProviderAccountID == id {
			return sa, true
		}
	}
	return SegregatedAccount{}, false
}
