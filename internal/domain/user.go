package domain

import "time"

// User types.
const (
	UserAdmin    = 1
	UserMeshOnly = 2 // access restricted to the Zoop family
	UserUseOnly  = 3
)

// User is an operator of the back office.
//
// Units holds the establishment ids the user is entitled to. A nil slice means
// the user was never restricted; an empty slice means no entitlements.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"nome"`
	CPF          string    `json:"cpf"`
	PasswordHash string    `json:"-"`
	Type         int       `json:"tipo"`
	Active       bool      `json:"status"`
	Units        []int64   `json:"unidades"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserInput is the payload for create/update.
type UserInput struct {
	Name     *string  `json:"nome"`
	CPF      *string  `json:"cpf"`
	Password *string  `json:"senha"`
	Type     *int     `json:"tipo"`
	Active   *bool    `json:"status"`
	Units    *[]int64 `json:"unidades"`
}

// AccessToken is the persisted record of an issued access token.
type AccessToken struct {
	ID        string
	UserID    int64
	Hash      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	CPF      string `json:"cpf"`
	Password string `json:"senha"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	ID    int64     `json:"id"`
	Name  string    `json:"nome"`
	Type  int       `json:"tipo"`
	Token string    `json:"token"`
	Units []UnitRef `json:"unidades"`
}
