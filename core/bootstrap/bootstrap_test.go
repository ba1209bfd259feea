package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/projectbot/core/config"
	coredatabase "github.com/m3rciful/projectbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	connected := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.NoError(t, res.Close())
}

func TestRunOrder(t *testing.T) {
	var steps []string
	res, err := Run(context.Background(), Options{
		Config:      &coreconfig.Config{},
		Database:    &coredatabase.Config{Host: "db"},
		WaitTimeout: time.Second,
		LoggerInit: func(*coreconfig.Config) error {
			steps = append(steps, "logger")
			return nil
		},
		WaitReady: func(context.Context, coredatabase.Config, time.Duration) error {
			steps = append(steps, "wait")
			return nil
		},
		Connect: func(_ context.Context, cfg coredatabase.Config) (*sqlx.DB, error) {
			assert.Equal(t, "db", cfg.Host)
			steps = append(steps, "connect")
			return &sqlx.DB{}, nil
		},
		Migrate: func(context.Context, coredatabase.Config) error {
			steps = append(steps, "migrate")
			return nil
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, res.DB)
	assert.Equal(t, []string{"logger", "wait", "connect", "migrate"}, steps)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	require.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)
}
