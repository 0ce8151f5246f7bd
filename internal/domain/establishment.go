// Package domain defines the core entities of the financial API: establishments,
// terminals, users and the transaction summaries built from the payment providers.
package domain

import "time"

// ============================================================
// Provider types
// ============================================================

// ProviderType selects which external payment API an establishment uses.
type ProviderType int

const (
	// ProviderZoop is the card acquirer reached through the Zoop marketplace API.
	ProviderZoop ProviderType = 1
	// ProviderSumcred shares the Zoop API family.
	ProviderSumcred ProviderType = 2
	// ProviderUse is the boleto/PIX collector (Use API).
	ProviderUse ProviderType = 3
)

// Valid reports whether t is a known provider type.
func (t ProviderType) Valid() bool {
	return t >= ProviderZoop && t <= ProviderUse
}

// UsesZoopAPI reports whether establishments of this type talk to Zoop.
func (t ProviderType) UsesZoopAPI() bool {
	return t == ProviderZoop || t == ProviderSumcred
}

// Region codes accepted for an establishment.
const (
	MinRegion = 1
	MaxRegion = 6
)

// ============================================================
// Establishment
// ============================================================

// Establishment is a merchant unit registered against one payment provider.
type Establishment struct {
	ID         int64        `json:"id"`
	Name       string       `json:"nome"`
	TaxID      string       `json:"cnpj"` // digits only
	Payout     bool         `json:"repasse"`
	Type       ProviderType `json:"tipo"`
	Key        string       `json:"chave"`
	Identifier string       `json:"identificador"`
	Seller     string       `json:"seller"`
	Region     int          `json:"regiao"`
	CreatedAt  time.Time    `json:"-"`
	UpdatedAt  time.Time    `json:"-"`
}

// EstablishmentFilter narrows establishment lookups.
// Zero values mean "no restriction".
type EstablishmentFilter struct {
	IDs         []int64
	Types       []ProviderType
	ExcludeType ProviderType
}

// EstablishmentInput is the payload for create/update.
// Pointer fields are optional on update.
type EstablishmentInput struct {
	Name       *string       `json:"nome"`
	TaxID      *string       `json:"cnpj"`
	Payout     *bool         `json:"repasse"`
	Type       *ProviderType `json:"tipo"`
	Key        *string       `json:"chave"`
	Identifier *string       `json:"identificador"`
	Seller     *string       `json:"seller"`
	Region     *int          `json:"regiao"`
}

// UnitRef is the short establishment view returned at login.
type UnitRef struct {
	ID     int64        `json:"id"`
	Name   string       `json:"nome"`
	Type   ProviderType `json:"tipo"`
	Region int          `json:"regiao"`
}
