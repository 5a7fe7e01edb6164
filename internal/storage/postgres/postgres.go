// Package postgres is the durable storage implementation, raw SQL over the
// pgx stdlib driver. One store type per aggregate, all sharing the pool.
package postgres

import (
	"database/sql"
)

type Orders struct {
	db *sql.DB
}

type Notifications struct {
	db *sql.DB
}

type Wallets struct {
	db *sql.DB
}

type Catalog struct {
	db *sql.DB
}

type Settings struct {
	db *sql.DB
}

func NewOrders(db *sql.DB) *Orders             { return &Orders{db: db} }
func NewNotifications(db *sql.DB) *Notifications { return &Notifications{db: db} }
func NewWallets(db *sql.DB) *Wallets           { return &Wallets{db: db} }
func NewCatalog(db *sql.DB) *Catalog           { return &Catalog{db: db} }
func NewSettings(db *sql.DB) *Settings         { return &Settings{db: db} }

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
