package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edahouse/shopcore/internal/platform"
	logx "github.com/edahouse/shopcore/pkg/logger"
)

const (
	msgCacheCleared     = "Кеш очищен! Приложение будет перезагружено."
	msgCacheClearFailed = "Ошибка очистки кеша: "
)

// ManualClear is the admin "clear all caches" action. It always purges, whatever the update
// bookkeeping says.
type ManualClear struct {
	Purger        *Purger
	Workers       platform.ServiceWorkers
	Navigator     platform.Navigator
	Alerter       platform.Alerter
	Clock         platform.Clock
	FallbackDelay time.Duration
}

// Run purges, tells the active worker to drop its caches, confirms to the user and reloads.
// Mobile and installed clients navigate to a cache-busted URL, desktop reloads in place. On
// failure the user is told and the page reloads plainly after FallbackDelay. Databases that
// could not be deleted are logged only. A nil Alerter logs alerts.
func (m *ManualClear) Run(ctx context.Context) error {
	if m.Navigator == nil {
		return errors.New("manual clear needs a navigator")
	}
	if m.Alerter == nil {
		m.Alerter = platform.LogAlerter{Log: logx.Component("alert")}
	}
	err := m.clear(ctx)
	if err == nil {
		return nil
	}

	logx.Error().Err(err).Msg("manual cache clear failed")
	m.Alerter.Alert(ctx, msgCacheClearFailed+err.Error())
	if serr := sleep(ctx, m.FallbackDelay); serr != nil {
		return errors.Join(err, serr)
	}
	if rerr := m.Navigator.Reload(ctx); rerr != nil {
		return errors.Join(err, fmt.Errorf("fallback reload: %w", rerr))
	}
	return err
}

func (m *ManualClear) clear(ctx context.Context) error {
	if m.Workers != nil {
		err := m.Workers.PostMessage(ctx, platform.WorkerMessage{Type: platform.MsgForceUpdate})
		if err != nil && !errors.Is(err, platform.ErrUnsupported) {
			return fmt.Errorf("notify service worker: %w", err)
		}
	}

	if m.Purger != nil {
		report := m.Purger.Purge(ctx)
		if err := report.Critical(); err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			logx.Warn().Err(err).Msg("some databases were not deleted")
		}
	}

	m.Alerter.Alert(ctx, msgCacheCleared)

	nav := m.Navigator
	if platform.IsMobile(nav.UserAgent()) || nav.Standalone() {
		clock := m.Clock
		if clock == nil {
			clock = platform.SystemClock
		}
		return nav.Replace(ctx, ManualReloadURL(nav.URL(), clock.Now()))
	}
	return nav.Reload(ctx)
}
