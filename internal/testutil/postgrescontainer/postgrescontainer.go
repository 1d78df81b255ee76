// Package postgrescontainer starts the Postgres instance backing the reminder
// repository integration tests.
package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/testutil/docker"
)

const (
	user     = "livpred"
	password = "secret"
	dbName   = "livpred_test"
)

var container = &docker.Container{
	Name:          "livpred-postgres-test",
	Dockerfile:    "Dockerfile.postgres.test",
	HostPort:      "55432",
	ContainerPort: "5432",
	ReadyTimeout:  15 * time.Second,
}

func init() { container.Ready = ping }

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return container.Addr() }

// DSN returns a lib/pq formatted connection string.
func DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, Addr(), dbName)
}

// Setup builds and launches the container if it isn't already running.
func Setup() error { return container.Start() }

// Teardown stops the container launched by Setup.
func Teardown() error { return container.Stop() }

func ping() error {
	db, err := sql.Open("postgres", DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return db.PingContext(ctx)
}
