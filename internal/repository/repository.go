// Package repository provides durable storage for subscription snapshots and
// usage counters, backed by PostgreSQL.
//
// Counter mutations are single atomic statements. The entitlement guarantee
// depends on tryConsume never being a read-then-write pair: concurrent
// requests from the same principal (double-submit, multiple tabs) must never
// over-consume, even across process instances.
package repository

import "database/sql"

// Queries holds the database handle and exposes one method per query.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance backed by db.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}
