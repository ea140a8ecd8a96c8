package testutil

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/db"
)

// StartPostgres returns the DSN of a fresh, fully migrated mall database.
func StartPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startupBudget)
	defer cancel()

	c := startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "mall", "POSTGRES_PASSWORD": "mall", "POSTGRES_DB": "mall"},
		ExposedPorts: []string{"5432/tcp"},
		// the server restarts once after initdb
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://mall:mall@" + net.JoinHostPort(host, port.Port()) + "/mall?sslmode=disable"
	require.NoError(t, db.RunMigrations(dsn, log.New(io.Discard, "", 0)))
	return dsn
}
