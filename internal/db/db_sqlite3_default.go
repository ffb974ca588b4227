//go:build !sqlite3_cgo

package db

// pure Go build, sqlite compiled to wasm and run by wazero
import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
