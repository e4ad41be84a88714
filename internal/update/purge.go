package update

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edahouse/shopcore/internal/platform"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const purgeConcurrency = 4

// Purger wipes every client-side cache. Nil capabilities are skipped.
type Purger struct {
	Caches    platform.CacheManager
	Databases platform.DatabaseManager
	Workers   platform.ServiceWorkers
	Local     platform.Storage
	Session   platform.Storage

	log zerolog.Logger
}

// StepError is one failed purge step.
type StepError struct {
	Step string
	Err  error

	// Database marks IndexedDB steps; a blocked database does not fail a manual clear.
	Database bool
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// PurgeReport lists what a purge removed and every step that failed.
type PurgeReport struct {
	Caches        []string
	Databases     []string
	Registrations []string
	Errors        []error
}

// Err joins the step failures, or returns nil when every step succeeded.
func (r PurgeReport) Err() error {
	return errors.Join(r.Errors...)
}

// Critical is Err without the IndexedDB failures.
func (r PurgeReport) Critical() error {
	var errs []error
	for _, err := range r.Errors {
		var step *StepError
		if errors.As(err, &step) && step.Database {
			continue
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func NewPurger(caches platform.CacheManager, databases platform.DatabaseManager, workers platform.ServiceWorkers, local, session platform.Storage) *Purger {
	return &Purger{
		Caches:    caches,
		Databases: databases,
		Workers:   workers,
		Local:     local,
		Session:   session,
		log:       logx.Component("purge"),
	}
}

// Purge deletes all caches, clears local and session storage while keeping the update
// tracking keys, deletes all databases and unregisters all service workers. A failing step
// is recorded and the remaining steps still run.
func (p *Purger) Purge(ctx context.Context) PurgeReport {
	var (
		mu     sync.Mutex
		report PurgeReport
	)
	record := func(step string, database bool, err error) {
		if err == nil || errors.Is(err, platform.ErrUnsupported) {
			return
		}
		p.log.Warn().Err(err).Str("step", step).Msg("purge step failed")
		mu.Lock()
		report.Errors = append(report.Errors, &StepError{Step: step, Database: database, Err: err})
		mu.Unlock()
	}
	fail := func(step string, err error) { record(step, false, err) }
	failDatabase := func(step string, err error) { record(step, true, err) }

	report.Caches = p.deleteCaches(ctx, fail)
	fail("storage", p.clearStorage(ctx))
	report.Databases = p.deleteDatabases(ctx, failDatabase)
	report.Registrations = p.unregisterWorkers(ctx, fail)

	p.log.Info().
		Int("caches", len(report.Caches)).
		Int("databases", len(report.Databases)).
		Int("registrations", len(report.Registrations)).
		Int("failures", len(report.Errors)).
		Msg("client caches purged")
	return report
}

func (p *Purger) deleteCaches(ctx context.Context, fail func(string, error)) []string {
	if p.Caches == nil {
		return nil
	}
	names, err := p.Caches.Keys(ctx)
	if err != nil {
		fail("list caches", err)
		return nil
	}
	return deleteAll(names, func(name string) error {
		_, err := p.Caches.Delete(ctx, name)
		if err != nil {
			fail("delete cache "+name, err)
		}
		return err
	})
}

func (p *Purger) deleteDatabases(ctx context.Context, fail func(string, error)) []string {
	if p.Databases == nil {
		return nil
	}
	names, err := p.Databases.Databases(ctx)
	if err != nil {
		fail("list databases", err)
		return nil
	}
	return deleteAll(names, func(name string) error {
		err := p.Databases.DeleteDatabase(ctx, name)
		if err != nil {
			fail("delete database "+name, err)
		}
		return err
	})
}

func (p *Purger) unregisterWorkers(ctx context.Context, fail func(string, error)) []string {
	if p.Workers == nil {
		return nil
	}
	regs, err := p.Workers.Registrations(ctx)
	if err != nil {
		fail("list registrations", err)
		return nil
	}
	var done []string
	for _, reg := range regs {
		if err := p.Workers.Unregister(ctx, reg.Scope); err != nil {
			fail("unregister "+reg.Scope, err)
			continue
		}
		done = append(done, reg.Scope)
	}
	return done
}

// clearStorage clears local storage around a snapshot of the tracking keys, then session
// storage. Without a snapshot local storage is left alone, so an applied hash is never
// forgotten; session storage is cleared regardless.
func (p *Purger) clearStorage(ctx context.Context) error {
	var errs []error
	if p.Local != nil {
		errs = append(errs, p.clearLocal(ctx)...)
	}
	if p.Session != nil {
		if err := p.Session.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear session storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *Purger) clearLocal(ctx context.Context) []error {
	tracker := NewTracker(p.Local)
	snap, err := tracker.Snapshot(ctx)
	if err != nil {
		return []error{fmt.Errorf("snapshot tracking keys, local storage kept: %w", err)}
	}
	var errs []error
	if err := p.Local.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear local storage: %w", err))
	}
	if err := tracker.Restore(ctx, snap); err != nil {
		errs = append(errs, fmt.Errorf("restore tracking keys: %w", err))
	}
	return errs
}

// deleteAll runs del for every name concurrently and returns the names that were deleted, in
// input order. A failing deletion does not stop the others.
func deleteAll(names []string, del func(string) error) []string {
	ok := make([]bool, len(names))
	var g errgroup.Group
	g.SetLimit(purgeConcurrency)
	for i, name := range names {
		g.Go(func() error {
			if del(name) == nil {
				ok[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var deleted []string
	for i, name := range names {
		if ok[i] {
			deleted = append(deleted, name)
		}
	}
	return deleted
}
