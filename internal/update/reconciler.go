// Package update keeps a long-lived client on the build the server is currently shipping.
//
// A Reconciler polls the version endpoint and compares the returned app hash against the one
// stored in local storage. A changed hash reloads the client once, silently, unless one of
// the suppression rules holds. The stored bookkeeping survives cache purges, so an applied
// hash is never applied twice.
package update

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/edahouse/shopcore/internal/bus"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// VersionSource fetches the server's current build fingerprint.
type VersionSource interface {
	Version(ctx context.Context) (model.Fingerprint, error)
}

// Variant selects the reconciliation flavour.
type Variant int

const (
	// Standard polls at the normal cadence and reloads in place.
	Standard Variant = iota
	// IOS polls faster, also reacts to version changes, purges every cache and navigates to
	// a cache-busted URL instead of reloading.
	IOS
)

func (v Variant) String() string {
	if v == IOS {
		return "ios"
	}
	return "standard"
}

// DetectVariant picks the variant for a user agent.
func DetectVariant(userAgent string) Variant {
	if platform.IsIOS(userAgent) {
		return IOS
	}
	return Standard
}

// Decision is the outcome of one check.
type Decision string

const (
	DecisionFirstCheck       Decision = "first-check"
	DecisionUnchanged        Decision = "unchanged"
	DecisionRecentlyUpdated  Decision = "recently-updated"
	DecisionAlreadyProcessed Decision = "already-processed"
	DecisionAdminActive      Decision = "admin-active"
	DecisionAdminLoading     Decision = "admin-loading"
	DecisionUpdated          Decision = "updated"
	DecisionInFlight         Decision = "in-flight"
)

// Suppressed reports whether a changed build was deliberately left alone.
func (d Decision) Suppressed() bool {
	switch d {
	case DecisionRecentlyUpdated, DecisionAlreadyProcessed, DecisionAdminActive, DecisionAdminLoading:
		return true
	}
	return false
}

type Options struct {
	Variant             Variant
	Interval            time.Duration
	RecentUpdateWindow  time.Duration
	AdminActivityWindow time.Duration
	ReloadDelay         time.Duration
}

// OptionsFrom derives reconciler options from configuration.
func OptionsFrom(cfg model.UpdateConfig, variant Variant) Options {
	interval := cfg.Interval
	if variant == IOS {
		interval = cfg.IOSInterval
	}
	return Options{
		Variant:             variant,
		Interval:            interval,
		RecentUpdateWindow:  cfg.RecentUpdateWindow,
		AdminActivityWindow: cfg.AdminActivityWindow,
		ReloadDelay:         cfg.ReloadDelay,
	}
}

// Deps are the capabilities a Reconciler works with. Workers, Activity, Events and Clock may
// be nil.
type Deps struct {
	Source    VersionSource
	Local     platform.Storage
	Navigator platform.Navigator
	Activity  platform.ActivityMonitor
	Workers   platform.ServiceWorkers
	Purger    *Purger
	Events    bus.Publisher
	Clock     platform.Clock
}

type Reconciler struct {
	deps    Deps
	opts    Options
	tracker *Tracker
	running atomic.Bool
	log     zerolog.Logger
}

func New(deps Deps, opts Options) *Reconciler {
	if deps.Activity == nil {
		deps.Activity = platform.IdleActivity{}
	}
	if deps.Workers == nil {
		deps.Workers = platform.NoServiceWorkers{}
	}
	if deps.Events == nil {
		deps.Events = bus.Discard
	}
	if deps.Clock == nil {
		deps.Clock = platform.SystemClock
	}
	return &Reconciler{
		deps:    deps,
		opts:    opts,
		tracker: NewTracker(deps.Local),
		log:     logx.Component("update").With().Str("variant", opts.Variant.String()).Logger(),
	}
}

// Check runs one reconciliation pass. A pass that starts while another is still running
// returns DecisionInFlight without doing anything.
func (r *Reconciler) Check(ctx context.Context) (Decision, error) {
	if !r.running.CompareAndSwap(false, true) {
		return DecisionInFlight, nil
	}
	defer r.running.Store(false)

	fp, err := r.deps.Source.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch version: %w", err)
	}

	stored, known, err := r.tracker.Current(ctx)
	if err != nil {
		return "", err
	}
	if !known {
		r.log.Info().Str("hash", fp.AppHash).Str("version", fp.Version).Msg("first version check, baseline stored")
		return DecisionFirstCheck, r.tracker.Remember(ctx, fp)
	}

	decision, err := r.decide(ctx, stored, fp)
	if err != nil {
		return "", err
	}
	if decision == DecisionUpdated {
		return decision, r.apply(ctx, stored, fp)
	}
	if decision.Suppressed() {
		r.log.Info().Str("from", stored.AppHash).Str("to", fp.AppHash).Str("reason", string(decision)).Msg("update suppressed")
	}
	return decision, r.tracker.Remember(ctx, fp)
}

func (r *Reconciler) decide(ctx context.Context, stored, fp model.Fingerprint) (Decision, error) {
	changed := fp.AppHash != stored.AppHash
	if r.opts.Variant == IOS && stored.Version != "" && fp.Version != stored.Version {
		changed = true
	}
	if !changed {
		return DecisionUnchanged, nil
	}

	now := r.deps.Clock.Now()
	last, ok, err := r.tracker.LastUpdate(ctx)
	if err != nil {
		return "", err
	}
	if ok && now.Sub(last) < r.opts.RecentUpdateWindow {
		return DecisionRecentlyUpdated, nil
	}

	processed, err := r.tracker.Processed(ctx, fp.AppHash)
	if err != nil {
		return "", err
	}
	if processed {
		return DecisionAlreadyProcessed, nil
	}

	activity := r.deps.Activity
	if activity.OnAdminRoute() {
		if at := activity.LastInteraction(); !at.IsZero() && now.Sub(at) < r.opts.AdminActivityWindow {
			return DecisionAdminActive, nil
		}
	}
	if activity.AdminLoading() {
		return DecisionAdminLoading, nil
	}
	return DecisionUpdated, nil
}

func (r *Reconciler) apply(ctx context.Context, stored, fp model.Fingerprint) error {
	now := r.deps.Clock.Now()
	if err := r.tracker.Remember(ctx, fp); err != nil {
		return err
	}
	if err := r.tracker.MarkApplied(ctx, fp.AppHash, now); err != nil {
		return err
	}
	r.log.Info().
		Str("from", stored.AppHash).
		Str("to", fp.AppHash).
		Str("version", fp.Version).
		Msg("new build detected, updating")
	r.deps.Events.Publish(bus.Message{
		Topic: bus.TopicUpdateApplied,
		Data:  map[string]string{"appHash": fp.AppHash, "version": fp.Version},
	})

	if r.opts.Variant == IOS {
		if r.deps.Purger != nil {
			if err := r.deps.Purger.Purge(ctx).Err(); err != nil {
				r.log.Warn().Err(err).Msg("purge before reload was incomplete")
			}
		}
		if err := sleep(ctx, r.opts.ReloadDelay); err != nil {
			return err
		}
		if err := r.deps.Navigator.Replace(ctx, IOSReloadURL(r.deps.Navigator.URL(), now)); err != nil {
			r.log.Warn().Err(err).Msg("cache-busted navigation failed, reloading in place")
			if rerr := r.deps.Navigator.Reload(ctx); rerr != nil {
				return errors.Join(fmt.Errorf("navigate to fresh build: %w", err), fmt.Errorf("reload: %w", rerr))
			}
		}
		return nil
	}

	r.skipWaiting(ctx)
	if err := sleep(ctx, r.opts.ReloadDelay); err != nil {
		return err
	}
	if err := r.deps.Navigator.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// skipWaiting lets an installed worker take over before the reload.
func (r *Reconciler) skipWaiting(ctx context.Context) {
	regs, err := r.deps.Workers.Registrations(ctx)
	if err != nil {
		if !errors.Is(err, platform.ErrUnsupported) {
			r.log.Debug().Err(err).Msg("could not list service worker registrations")
		}
		return
	}
	for _, reg := range regs {
		if !reg.HasWaiting {
			continue
		}
		if err := r.deps.Workers.PostMessage(ctx, platform.WorkerMessage{Type: platform.MsgSkipWaiting}); err != nil {
			r.log.Debug().Err(err).Str("scope", reg.Scope).Msg("skip waiting not delivered")
		}
		return
	}
}

// Run checks once immediately and then on every interval tick until ctx is done. Failed
// checks are logged and retried on the next tick. Worker messages are handled alongside.
func (r *Reconciler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.tick(ctx)
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	})
	if messages := r.deps.Workers.Messages(); messages != nil {
		g.Go(func() error {
			return r.listen(ctx, messages)
		})
	}
	return g.Wait()
}

func (r *Reconciler) tick(ctx context.Context) {
	decision, err := r.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("version check failed")
		}
		return
	}
	r.log.Debug().Str("decision", string(decision)).Msg("version check done")
}

// listen handles messages posted by the service worker. A worker announcing a new version is
// only logged: polling alone decides when to reload.
func (r *Reconciler) listen(ctx context.Context, messages <-chan platform.WorkerMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			switch msg.Type {
			case platform.MsgNewVersionAvailable:
				r.log.Info().Msg("service worker reports a new version, waiting for version check")
			case platform.MsgTestNotification:
				r.deps.Events.Publish(bus.Message{
					Topic: bus.TopicWorkerMessage,
					Data:  map[string]string{"type": string(msg.Type)},
				})
			default:
				r.log.Debug().Str("type", string(msg.Type)).Msg("ignoring service worker message")
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
