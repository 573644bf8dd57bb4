package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "docintel"
	postgresPassword = "docintel"
	postgresDB       = "docintel_test"
)

// postgresContainer is a throwaway Postgres started through the docker CLI.
type postgresContainer struct {
	id      string
	connStr string
}

// startPostgresContainer runs postgres on a host port picked by docker and
// waits until it answers queries over TCP.
func startPostgresContainer(ctx context.Context) (*postgresContainer, error) {
	id, err := docker(ctx, "run", "-d",
		"--label", "docintel.integration=true",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+postgresUser,
		"-e", "POSTGRES_PASSWORD="+postgresPassword,
		"-e", "POSTGRES_DB="+postgresDB,
		postgresImage,
	)
	if err != nil {
		return nil, err
	}
	c := &postgresContainer{id: id}

	mapped, err := docker(ctx, "port", c.id, "5432/tcp")
	if err != nil {
		c.stop()
		return nil, err
	}
	// One line per published address; the first is the loopback binding.
	addr, _, _ := strings.Cut(mapped, "\n")
	c.connStr = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", postgresUser, postgresPassword, addr, postgresDB)

	if err := c.waitReady(ctx, 30*time.Second); err != nil {
		c.stop()
		return nil, err
	}
	return c, nil
}

// waitReady polls until the server accepts TCP connections. The image's
// init phase listens on the unix socket only, so a TCP ping succeeds only
// once the final server is up.
func (c *postgresContainer) waitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		if lastErr = ping(ctx, c.connStr); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %w", timeout, lastErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (c *postgresContainer) stop() {
	exec.Command("docker", "rm", "-f", "-v", c.id).Run()
}

func ping(ctx context.Context, connStr string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := pgx.Connect(attemptCtx, connStr)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	return conn.Ping(attemptCtx)
}

// docker runs one docker CLI command and returns its trimmed output.
func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
