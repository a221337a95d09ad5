// Package docker starts throwaway Postgres containers carrying a minimal
// GoTrue auth schema, for integration tests of the postgres provider.
package docker

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

// AuthSchema is the subset of the GoTrue auth.users table the console reads
// and writes.
const AuthSchema = `
	CREATE SCHEMA IF NOT EXISTS auth;
	CREATE TABLE IF NOT EXISTS auth.users (
		id UUID PRIMARY KEY,
		email TEXT,
		raw_user_meta_data JSONB,
		banned_until TIMESTAMPTZ,
		last_sign_in_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	);
`

type Container struct {
	ID       string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func (c *Container) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type PostgresConfig struct {
	Version  string
	User     string
	Password string
	Database string
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Version:  "16",
		User:     "warden",
		Password: "warden",
		Database: "warden",
	}
}

func StartPostgres(ctx context.Context, cfg PostgresConfig) (*Container, error) {
	port, err := findFreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find free port: %w", err)
	}

	image := fmt.Sprintf("postgres:%s", cfg.Version)

	args := []string{
		"run", "-d",
		"--rm",
		"-e", fmt.Sprintf("POSTGRES_USER=%s", cfg.User),
		"-e", fmt.Sprintf("POSTGRES_PASSWORD=%s", cfg.Password),
		"-e", fmt.Sprintf("POSTGRES_DB=%s", cfg.Database),
		"-p", fmt.Sprintf("%s:5432", port),
		image,
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("failed to start container: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	container := &Container{
		ID:       strings.TrimSpace(string(output)),
		Host:     "localhost",
		Port:     port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	}

	if err := waitForPostgres(ctx, container); err != nil {
		_ = StopContainer(context.Background(), container.ID)
		return nil, err
	}

	return container, nil
}

// StartAuthDatabase starts a container and creates AuthSchema in it.
func StartAuthDatabase(ctx context.Context, cfg PostgresConfig) (*Container, error) {
	container, err := StartPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ExecuteSQL(ctx, container, AuthSchema); err != nil {
		_ = StopContainer(context.Background(), container.ID)
		return nil, fmt.Errorf("failed to create auth schema: %w", err)
	}
	return container, nil
}

func StopContainer(ctx context.Context, containerID string) error {
	cmd := exec.CommandContext(ctx, "docker", "stop", containerID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

func waitForPostgres(ctx context.Context, container *Container) error {
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cmd := exec.CommandContext(ctx, "docker", "exec", container.ID,
			"pg_isready", "-U", container.User, "-d", container.Database)

		if err := cmd.Run(); err == nil {
			return nil
		}

		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("timeout waiting for postgres to be ready")
}

func ExecuteSQL(ctx context.Context, container *Container, sql string) error {
	cmd := exec.CommandContext(ctx, "docker", "exec", "-i", container.ID,
		"psql", "-U", container.User, "-d", container.Database, "-v", "ON_ERROR_STOP=1")

	cmd.Stdin = strings.NewReader(sql)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %s\n%w", string(output), err)
	}

	return nil
}

func findFreePort() (string, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", err
	}
	defer func() { _ = listener.Close() }()

	addr := listener.Addr().(*net.TCPAddr)
	return fmt.Sprintf("%d", addr.Port), nil
}
