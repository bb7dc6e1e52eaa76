//go:build cgo && sqlite3_cgo

package db

import (
	_ "github.com/mattn/go-sqlite3"
)

var sqlite = sqliteDriver{
	id:         "mattn/go-sqlite3",
	name:       "sqlite3",
	connParams: "_foreign_keys=1&_busy_timeout=5000",
}
