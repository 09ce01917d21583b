package bootstrap

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/lifeweeks/core/config"
	coredatabase "github.com/m3rciful/lifeweeks/core/database"
)

func TestRunAppliesMigrationsOnSQLite(t *testing.T) {
	migrations := fstest.MapFS{
		"sqlite/0001_probe.up.sql":   {Data: []byte("CREATE TABLE probe (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_probe.down.sql": {Data: []byte("DROP TABLE probe;")},
	}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "bot.db")},
		Migrations: migrations,
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })

	var n int
	require.NoError(t, res.DB.Get(&n, "SELECT COUNT(*) FROM probe"))
	assert.Zero(t, n)
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")

	_, err := Run(Options{})
	assert.Error(t, err)

	_, err = Run(Options{Config: &coreconfig.Config{}, LoggerInit: func(*coreconfig.Config) error { return boom }})
	assert.ErrorIs(t, err, boom)

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "oracle"},
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	assert.ErrorContains(t, err, "invalid database.driver")

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}
