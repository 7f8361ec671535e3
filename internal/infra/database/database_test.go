package database

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("merch:secret@tcp(db:3306)/merch")
	require.NoError(t, err)

	cfg, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "merch", cfg.DBName)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestMySQLDSN_Invalid(t *testing.T) {
	_, err := mysqlDSN("not a dsn")
	assert.Error(t, err)
}

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor(Options{Driver: "postgres", URL: "postgres://u:p@localhost:5432/merch"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(Options{Driver: "mysql", URL: "u:p@tcp(localhost:3306)/merch"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialectorFor(Options{Driver: "sqlite"})
	assert.Error(t, err)
}
