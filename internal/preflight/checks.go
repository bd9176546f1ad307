package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/sys/unix"

	"framepipe/internal/config"
	"framepipe/internal/pgdb"
)

const serviceTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPostgres connects to the catalog database and pings it.
func CheckPostgres(ctx context.Context, url string) Result {
	const name = "PostgreSQL"
	if strings.TrimSpace(url) == "" {
		return Result{Name: name, Detail: "missing postgres_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	pool, err := pgdb.Connect(checkCtx, url)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	pool.Close()
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckValkey pings the dispatch server.
func CheckValkey(ctx context.Context, cfg config.Dispatch) Result {
	const name = "Valkey"
	if strings.TrimSpace(cfg.ValkeyAddr) == "" {
		return Result{Name: name, Detail: "missing valkey_addr"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{cfg.ValkeyAddr},
		Password:     cfg.ValkeyPassword,
		DisableRetry: true,
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer client.Close()

	if err := client.Do(checkCtx, client.B().Ping().Build()).Error(); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", cfg.ValkeyAddr)}
}

// CheckGeminiKey reports whether an API key is configured. No request is
// made; the first embed call surfaces an invalid key as a terminal error.
func CheckGeminiKey(apiKey string) Result {
	const name = "Gemini"
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return Result{Name: name, Passed: true, Detail: "API key configured"}
}

// CheckS3Settings reports whether the artifact bucket is configured.
func CheckS3Settings(cfg config.Artifacts) Result {
	const name = "S3 artifacts"
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return Result{Name: name, Detail: "missing s3_bucket"}
	}
	detail := "s3://" + cfg.S3Bucket
	if cfg.S3Endpoint != "" {
		detail += " via " + cfg.S3Endpoint
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
