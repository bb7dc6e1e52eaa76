//go:build !(cgo && sqlite3_cgo)

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var sqlite = sqliteDriver{
	id:         "ncruces/go-sqlite3",
	name:       "sqlite3",
	connParams: "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
}
