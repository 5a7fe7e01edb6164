package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	BalancePaisa int64     `json:"wallet_balance_paisa"`
	Blocked      bool      `json:"blocked"`
	CreatedAt    time.Time `json:"created_at"`
}
