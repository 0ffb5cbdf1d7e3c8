package bootstrap

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sushef/core/config"
	coredatabase "github.com/m3rciful/sushef/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called without a database")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.NoError(t, res.Close())
}

func TestRunMigratesThenConnects(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	var steps []string
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Name: "sushef"},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { steps = append(steps, "migrate"); return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return sqlx.NewDb(raw, "postgres"), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"migrate", "connect"}, steps)
	require.NoError(t, res.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	boom := errors.New("dirty database version 1")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunSkipsMigrations(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	_, err = Run(Options{
		Config:         &coreconfig.Config{},
		Database:       &coredatabase.Config{},
		SkipMigrations: true,
		LoggerInit:     noLogger,
		Migrate: func(coredatabase.Config) error {
			t.Fatal("migrate must not run")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) { return sqlx.NewDb(raw, "postgres"), nil },
	})
	require.NoError(t, err)
}
