package model

import "time"

// Package is one purchasable catalog entry. The catalog is read-only here;
// management lives outside this service.
type Package struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Amount     int       `json:"amount"`
	PricePaisa int64     `json:"price_paisa"`
	Active     bool      `json:"active"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

// FulfillmentAccount holds the credentials the fulfillment collaborator logs
// in with. Password and PIN are stored encrypted.
type FulfillmentAccount struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordEncrypted string     `json:"-"`
	PINEncrypted      string     `json:"-"`
	Active            bool       `json:"active"`
	LastUsed          *time.Time `json:"last_used,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
