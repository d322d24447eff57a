package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/goto/salt/log"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/ory/dockertest/v3"
)

const (
	PGHost     = "localhost"
	PGUsername = "test_user"
	PGPassword = "test_pass"
	PGName     = "test_db"
)

// RunTestPG starts a disposable postgres container and returns its port.
func RunTestPG(t *testing.T, logger log.Logger) (int, error) {
	t.Helper()

	hostPort, err := startContainer(t, logger, container{
		name: "PG",
		opts: &dockertest.RunOptions{
			Repository: "postgres",
			Tag:        "14",
			Env: []string{
				"POSTGRES_PASSWORD=" + PGPassword,
				"POSTGRES_USER=" + PGUsername,
				"POSTGRES_DB=" + PGName,
			},
		},
		port: "5432/tcp",
		ready: func(hostPort string) error {
			db, err := sql.Open("pgx", fmt.Sprintf(
				"dbname=%s user=%s password='%s' host=%s port=%s sslmode=disable",
				PGName, PGUsername, PGPassword, PGHost, hostPort,
			))
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Ping()
		},
	})
	if err != nil {
		return 0, err
	}

	port, err := strconv.Atoi(hostPort)
	if err != nil {
		return 0, fmt.Errorf("new test PG: parse external port of container to int: %w", err)
	}
	return port, nil
}

// RunMigrations resets the public schema of db and applies every migration.
func RunMigrations(t *testing.T, db *sql.DB) error {
	t.Helper()

	return RunMigrationsWithClient(t, postgres.NewClientWithDB(db))
}

func RunMigrationsWithClient(t *testing.T, pgClient *postgres.Client) error {
	t.Helper()

	queries := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
	}
	if err := pgClient.ExecQueries(context.Background(), queries); err != nil {
		return err
	}

	_, err := pgClient.Migrate()
	return err
}
