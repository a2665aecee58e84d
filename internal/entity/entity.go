// Package entity defines the destination-shaped records produced by the
// mapper and persisted by the store. Field widths mirror the destination
// column limits; callers truncate before constructing an entity.
package entity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindClient   Kind = "clients"
	KindContract Kind = "contracts"
	KindPayment  Kind = "payments"
)

// Destination column widths.
const (
	MaxNameLen           = 255
	MaxEmailLen          = 100
	MaxPhoneLen          = 50
	MaxTaxIDLen          = 50
	MaxAddressLen        = 255
	MaxCityLen           = 100
	MaxStateLen          = 100
	MaxPostalCodeLen     = 20
	MaxCountryLen        = 100
	MaxContractNumberLen = 50
	MaxDescriptionLen    = 255
	MaxPaymentMethodLen  = 50
	MaxExternalIDLen     = 50
)

// Contract and payment status vocabularies accepted by the destination.
var (
	ContractStatuses = map[string]struct{}{
		"active": {}, "closed": {}, "pending": {}, "cancelled": {}, "completed": {},
	}
	PaymentStatuses = map[string]struct{}{
		"pending": {}, "paid": {}, "overdue": {},
	}
)

// LinkRef carries the source-side identifiers a child row uses to point at
// its parent. The resolver turns it into a destination id.
type LinkRef struct {
	// ExternalID is the derived prefixed key (e.g. CLI_<source uuid>).
	ExternalID string
	// SourceID is the raw identifier as it appeared in the source column.
	SourceID string
	// Name is a free-text display name, used only for client resolution
	// as a last resort.
	Name string
}

func (r LinkRef) Empty() bool {
	return r.ExternalID == "" && r.SourceID == "" && strings.TrimSpace(r.Name) == ""
}

type Client struct {
	SourceID   string
	FirstName  string
	LastName   string
	Email      *string
	Phone      *string
	Mobile     *string
	TaxID      *string
	BirthDate  *string
	Address    *string
	City       *string
	State      *string
	PostalCode *string
	Country    string
	Notes      *string
	Status     string
	ExternalID *string
}

func (c Client) Key() string {
	if c.ExternalID != nil {
		return *c.ExternalID
	}
	return c.SourceID
}

// NameKey is the normalized key used for last-resort name matching:
// lower-cased, whitespace-trimmed "first last".
func (c Client) NameKey() string {
	return NameKey(c.FirstName, c.LastName)
}

func NameKey(first, last string) string {
	k := strings.TrimSpace(strings.ToLower(strings.TrimSpace(first)) + " " + strings.ToLower(strings.TrimSpace(last)))
	return strings.Join(strings.Fields(k), " ")
}

// SplitName divides a free-text name on the first whitespace: first token
// becomes the first name, the remainder the last name.
func SplitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.Fields(full)
	return parts[0], strings.Join(parts[1:], " ")
}

type Contract struct {
	SourceID         string
	ClientID         int64
	ClientRef        LinkRef
	ContractNumber   *string
	Description      *string
	TotalAmount      decimal.Decimal
	StartDate        *string
	EndDate          *string
	Status           string
	PaymentFrequency string
	Notes            *string
	ExternalID       *string
}

func (c Contract) Key() string {
	if c.ExternalID != nil {
		return *c.ExternalID
	}
	return c.SourceID
}

type Payment struct {
	SourceID      string
	ContractID    int64
	ContractRef   LinkRef
	Amount        decimal.Decimal
	DueDate       *string
	PaidDate      *string
	Status        string
	PaymentMethod *string
	Notes         *string
	ExternalID    *string
}

func (p Payment) Key() string {
	if p.ExternalID != nil {
		return *p.ExternalID
	}
	return p.SourceID
}

// ExternalID derives the stable upsert key for a source row id:
// a kind prefix plus the first 46 characters of the source id, the whole
// key capped at the destination column width. Empty source ids produce
// no key (the row falls back to plain insert).
func ExternalID(kind Kind, sourceID string) *string {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil
	}
	var prefix string
	switch kind {
	case KindClient:
		prefix = "CLI_"
	case KindContract:
		prefix = "CON_"
	case KindPayment:
		prefix = "PAY_"
	default:
		prefix = "EXT_"
	}
	id := sourceID
	if r := []rune(id); len(r) > 46 {
		id = string(r[:46])
	}
	key := prefix + id
	if r := []rune(key); len(r) > MaxExternalIDLen {
		key = string(r[:MaxExternalIDLen])
	}
	return &key
}

// DisplayName is used in warnings and audit logs.
func (c Client) DisplayName() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", c.FirstName, c.LastName))
}
