// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package store persists the locally-generated ULA prefix across
// restarts in a small sqlite database, so a router does not renumber
// its downstream links every time it reboots.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dtaht/hnetd/prefix"
)

const schema = `
CREATE TABLE IF NOT EXISTS ula_prefix (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	address BLOB NOT NULL,
	plen INTEGER NOT NULL
);
`

// ULAStore is a sqlite-backed implementation of pa.ULAStore.
type ULAStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*ULAStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &ULAStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *ULAStore) Close() error {
	return s.db.Close()
}

// Get returns the persisted ULA prefix, if one has ever been saved.
func (s *ULAStore) Get() (prefix.Prefix, bool) {
	row := s.db.QueryRow(`SELECT address, plen FROM ula_prefix WHERE id = 0`)
	var addr []byte
	var plen int
	if err := row.Scan(&addr, &plen); err != nil {
		return prefix.Prefix{}, false
	}
	var p prefix.Prefix
	copy(p.Addr[:], addr)
	p.Plen = uint8(plen)
	return p, true
}

// Save persists p as the ULA prefix, replacing any previous value.
func (s *ULAStore) Save(p prefix.Prefix) {
	_, _ = s.db.Exec(
		`INSERT INTO ula_prefix (id, address, plen) VALUES (0, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET address = excluded.address, plen = excluded.plen`,
		p.Addr[:], p.Plen,
	)
}
