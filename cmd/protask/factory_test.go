package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"protask/internal/config"
	apperrors "protask/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Database.Dir = filepath.Join(t.TempDir(), "nested", "dir")
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		value string
		want  Environment
	}{
		{"development", Development},
		{"testing", Testing},
		{"production", Production},
		{"", Production},
		{"staging", Production},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("PROTASK_ENV", tt.value)
			assert.Equal(t, tt.want, getEnvironment())
		})
	}
}

func TestClientFactory_Testing(t *testing.T) {
	var stderr bytes.Buffer
	factory := NewClientFactory(Testing, &stderr)
	ctx := context.Background()

	businessAPI, closer, err := factory.Connect(ctx, testConfig(t))
	require.NoError(t, err)

	_, err = businessAPI.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	require.NoError(t, businessAPI.LogOut(ctx))

	require.NoError(t, businessAPI.RequestPasswordReset(ctx, "ada@example.com"))
	assert.Contains(t, stderr.String(), "Password reset token for ada@example.com")

	require.NoError(t, closer.Close())
}

func TestClientFactory_ProductionCreatesDirectory(t *testing.T) {
	cfg := testConfig(t)
	factory := NewClientFactory(Production, &bytes.Buffer{})
	ctx := context.Background()

	businessAPI, closer, err := factory.Connect(ctx, cfg)
	require.NoError(t, err)
	_, err = businessAPI.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	_, err = os.Stat(cfg.GetDatabasePath())
	require.NoError(t, err)

	// the session survives into the next run
	businessAPI, closer, err = factory.Connect(ctx, cfg)
	require.NoError(t, err)
	defer closer.Close()
	me, err := businessAPI.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.DisplayName)
}

func TestClientFactory_PostgresUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Backend = config.BackendPostgres
	cfg.Database.PostgresURL = "postgres://nobody@127.0.0.1:1/protask?connect_timeout=1"

	_, closer, err := NewClientFactory(Testing, &bytes.Buffer{}).Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, closer)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDatabase))
}

func TestClosers_Close(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	c := closers{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return boom },
		func() error { order = append(order, 3); return nil },
	}

	err := c.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)
}
