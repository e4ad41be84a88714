package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NoServiceWorkers is the container of a platform without service worker support.
type NoServiceWorkers struct{}

func (NoServiceWorkers) Registrations(context.Context) ([]Registration, error) {
	return nil, ErrUnsupported
}

func (NoServiceWorkers) Unregister(context.Context, string) error { return ErrUnsupported }

func (NoServiceWorkers) PostMessage(context.Context, WorkerMessage) error { return ErrUnsupported }

func (NoServiceWorkers) Messages() <-chan WorkerMessage { return nil }

// ExecNavigator reloads the page by running a shell command (typically one that restarts a
// kiosk browser) with RELOAD_URL set to the target. An empty Command only logs.
type ExecNavigator struct {
	Command      string
	Agent        string
	IsStandalone bool
	Log          zerolog.Logger

	mu  sync.Mutex
	url string
}

func NewExecNavigator(command, pageURL, userAgent string, log zerolog.Logger) *ExecNavigator {
	return &ExecNavigator{Command: command, Agent: userAgent, Log: log, url: pageURL}
}

func (n *ExecNavigator) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

func (n *ExecNavigator) UserAgent() string { return n.Agent }

func (n *ExecNavigator) Standalone() bool { return n.IsStandalone }

func (n *ExecNavigator) Reload(ctx context.Context) error {
	return n.run(ctx, n.URL())
}

func (n *ExecNavigator) Replace(ctx context.Context, url string) error {
	n.mu.Lock()
	n.url = url
	n.mu.Unlock()
	return n.run(ctx, url)
}

func (n *ExecNavigator) run(ctx context.Context, url string) error {
	if n.Command == "" {
		n.Log.Info().Str("url", url).Msg("reload requested, no reload command configured")
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", n.Command)
	cmd.Env = append(os.Environ(), "RELOAD_URL="+url)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("reload command: %w: %s", err, out)
	}
	n.Log.Info().Str("url", url).Msg("page reloaded")
	return nil
}

// LogAlerter prints alerts to the log; a headless host has nobody to block.
type LogAlerter struct {
	Log zerolog.Logger
}

func (a LogAlerter) Alert(_ context.Context, message string) {
	a.Log.Warn().Str("alert", message).Msg("user alert")
}

// IdleActivity reports a user who is never on an admin route.
type IdleActivity struct{}

func (IdleActivity) OnAdminRoute() bool { return false }

func (IdleActivity) LastInteraction() time.Time { return time.Time{} }

func (IdleActivity) AdminLoading() bool { return false }

var (
	_ ServiceWorkers  = NoServiceWorkers{}
	_ Navigator       = (*ExecNavigator)(nil)
	_ Alerter         = LogAlerter{}
	_ ActivityMonitor = IdleActivity{}
)
