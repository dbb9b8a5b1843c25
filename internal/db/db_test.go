package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/brigadier/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.DBConfig{Host: "db", Port: 5433, Username: "u", Password: "p", Database: "brigadier"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=brigadier sslmode=disable", DSN(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_projects.up.sql")
	assert.Contains(t, names, "000001_create_projects.down.sql")
}
