package domain

import "time"

// Terminal is a physical card-payment device owned by an establishment.
type Terminal struct {
	ID              int64     `json:"id"`
	Serial          string    `json:"serial"`
	Description     *string   `json:"descricao"`
	Type            int       `json:"tipo"`
	Identifier      string    `json:"identificador"` // provider-side terminal id
	EstablishmentID int64     `json:"unidade_id"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// Label returns the description, or the serial when no description was set.
func (t Terminal) Label() string {
	if t.Description != nil && *t.Description != "" {
		return *t.Description
	}
	return t.Serial
}

// TerminalInput is the payload for create/update.
type TerminalInput struct {
	Serial          *string `json:"serial"`
	Description     *string `json:"descricao"`
	Type            *int    `json:"tipo"`
	EstablishmentID *int64  `json:"unidade_id"`
}

// RemoteTerminal is a terminal as described by the provider API.
type RemoteTerminal struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number"`
}
