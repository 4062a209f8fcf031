// Package integration boots the botgate binary for black-box HTTP specs.
package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// IntegrationSecret is the shared secret written to the app's secret file.
const IntegrationSecret = "integration-secret"

const (
	healthPath   = "/health"
	startTimeout = 15 * time.Second
	stopTimeout  = 5 * time.Second
)

// Options tunes the environment the app is started with.
type Options struct {
	// Webhooks maps a platform name to the URL its messages are posted to.
	Webhooks map[string]string
}

// App is a running botgate process.
type App struct {
	BaseURL string

	cmd     *exec.Cmd
	workDir string
}

// StartApp builds the binary into a temporary directory, starts it on a
// free loopback port with the secret read from a file, and waits until
// /health answers.
func StartApp(opts Options) (*App, error) {
	repoRoot, err := findRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("find repo root: %w", err)
	}

	workDir, err := os.MkdirTemp("", "botgate-integration-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	app := &App{workDir: workDir}

	binary := filepath.Join(workDir, "botgate")
	if runtime.GOOS == "windows" {
		binary += ".exe"
	}
	build := exec.Command("go", "build", "-o", binary, "./cmd/botgate")
	build.Dir = repoRoot
	if out, buildErr := build.CombinedOutput(); buildErr != nil {
		app.cleanup()
		return nil, fmt.Errorf("build binary: %w\n%s", buildErr, out)
	}

	secretFile := filepath.Join(workDir, "secret.txt")
	if err := os.WriteFile(secretFile, []byte("# integration\n"+IntegrationSecret+"\n"), 0o600); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("write secret file: %w", err)
	}

	port, err := freePort()
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("pick port: %w", err)
	}

	env := append(environWithout("BOTGATE_"),
		"BOTGATE_HOST=127.0.0.1",
		"BOTGATE_PORT="+strconv.Itoa(port),
		"BOTGATE_SECRET_FILE="+secretFile,
		"BOTGATE_SECRET_REQUIRED=true",
		"BOTGATE_LOG_LEVEL=warn",
	)
	for name, url := range opts.Webhooks {
		env = append(env, "BOTGATE_"+strings.ToUpper(name)+"_WEBHOOK_URL="+url)
	}

	app.cmd = exec.Command(binary)
	app.cmd.Dir = workDir
	app.cmd.Env = env
	app.cmd.Stdout = os.Stdout
	app.cmd.Stderr = os.Stderr
	if err := app.cmd.Start(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("start app: %w", err)
	}
	app.BaseURL = "http://127.0.0.1:" + strconv.Itoa(port)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := waitForHealth(ctx, app.BaseURL); err != nil {
		app.Stop()
		return nil, fmt.Errorf("wait for health: %w", err)
	}
	return app, nil
}

// Stop asks the process to shut down, kills it if it lingers, and removes
// the work directory.
func (a *App) Stop() {
	if a.cmd != nil && a.cmd.Process != nil {
		done := make(chan struct{})
		go func() {
			_ = a.cmd.Wait()
			close(done)
		}()
		if err := a.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = a.cmd.Process.Kill()
		}
		select {
		case <-done:
		case <-time.After(stopTimeout):
			_ = a.cmd.Process.Kill()
			<-done
		}
	}
	a.cleanup()
}

func (a *App) cleanup() {
	_ = os.RemoveAll(a.workDir)
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// environWithout drops variables with the given prefix so the host's own
// settings cannot leak into the app.
func environWithout(prefix string) []string {
	var out []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for start := dir; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", start)
		}
		dir = parent
	}
}

func waitForHealth(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+healthPath, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-ticker.C:
		}
	}
}
