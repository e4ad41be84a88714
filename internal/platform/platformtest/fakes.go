// Package platformtest provides in-memory platform capabilities for tests.
package platformtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/edahouse/shopcore/internal/platform"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FailingStorage wraps a Storage and fails the operations it is told to.
type FailingStorage struct {
	platform.Storage
	FailGet   error
	FailSet   error
	FailClear error
}

func (f *FailingStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if f.FailGet != nil {
		return "", false, f.FailGet
	}
	return f.Storage.GetItem(ctx, key)
}

func (f *FailingStorage) SetItem(ctx context.Context, key, value string) error {
	if f.FailSet != nil {
		return f.FailSet
	}
	return f.Storage.SetItem(ctx, key, value)
}

func (f *FailingStorage) Clear(ctx context.Context) error {
	if f.FailClear != nil {
		return f.FailClear
	}
	return f.Storage.Clear(ctx)
}

// Caches is an in-memory CacheManager. Names listed in Fail refuse deletion.
type Caches struct {
	mu      sync.Mutex
	names   map[string]bool
	Fail    map[string]bool
	KeysErr error
}

func NewCaches(names ...string) *Caches {
	c := &Caches{names: make(map[string]bool), Fail: make(map[string]bool)}
	for _, n := range names {
		c.names[n] = true
	}
	return c
}

func (c *Caches) Keys(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.KeysErr != nil {
		return nil, c.KeysErr
	}
	return sortedKeys(c.names), nil
}

func (c *Caches) Delete(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail[name] {
		return false, errors.New("cache busy: " + name)
	}
	ok := c.names[name]
	delete(c.names, name)
	return ok, nil
}

// Databases is an in-memory DatabaseManager. Names listed in Blocked refuse deletion.
type Databases struct {
	mu      sync.Mutex
	names   map[string]bool
	Blocked map[string]bool
	ListErr error
}

func NewDatabases(names ...string) *Databases {
	d := &Databases{names: make(map[string]bool), Blocked: make(map[string]bool)}
	for _, n := range names {
		d.names[n] = true
	}
	return d
}

func (d *Databases) Databases(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	return sortedKeys(d.names), nil
}

func (d *Databases) DeleteDatabase(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Blocked[name] {
		return errors.New("delete blocked: " + name)
	}
	delete(d.names, name)
	return nil
}

// Workers is an in-memory service worker container. Scopes listed in Waiting have an
// installed worker waiting to activate.
type Workers struct {
	mu      sync.Mutex
	scopes  map[string]bool
	posted  []platform.WorkerMessage
	inbox   chan platform.WorkerMessage
	Waiting map[string]bool
	PostErr error
	ListErr error
}

func NewWorkers(scopes ...string) *Workers {
	w := &Workers{
		scopes:  make(map[string]bool),
		inbox:   make(chan platform.WorkerMessage, 16),
		Waiting: make(map[string]bool),
	}
	for _, s := range scopes {
		w.scopes[s] = true
	}
	return w
}

func (w *Workers) Registrations(context.Context) ([]platform.Registration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ListErr != nil {
		return nil, w.ListErr
	}
	regs := make([]platform.Registration, 0, len(w.scopes))
	for _, s := range sortedKeys(w.scopes) {
		regs = append(regs, platform.Registration{Scope: s, HasWaiting: w.Waiting[s]})
	}
	return regs, nil
}

func (w *Workers) Unregister(_ context.Context, scope string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.scopes, scope)
	return nil
}

func (w *Workers) PostMessage(_ context.Context, msg platform.WorkerMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.PostErr != nil {
		return w.PostErr
	}
	w.posted = append(w.posted, msg)
	return nil
}

func (w *Workers) Messages() <-chan platform.WorkerMessage { return w.inbox }

// Emit simulates a message posted by the worker.
func (w *Workers) Emit(msg platform.WorkerMessage) { w.inbox <- msg }

func (w *Workers) Posted() []platform.WorkerMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]platform.WorkerMessage(nil), w.posted...)
}

func (w *Workers) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.scopes)
}

// Navigator records reloads and URL replacements.
type Navigator struct {
	mu           sync.Mutex
	Page         string
	Agent        string
	InstalledPWA bool
	Reloads      int
	Replaced     []string
	ReloadErr    error
	ReplaceErr   error
}

func (n *Navigator) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Page
}

func (n *Navigator) UserAgent() string { return n.Agent }

func (n *Navigator) Standalone() bool { return n.InstalledPWA }

func (n *Navigator) Reload(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reloads++
	return n.ReloadErr
}

func (n *Navigator) Replace(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ReplaceErr != nil {
		return n.ReplaceErr
	}
	n.Replaced = append(n.Replaced, url)
	n.Page = url
	return nil
}

func (n *Navigator) Navigations() (reloads int, replaced []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Reloads, append([]string(nil), n.Replaced...)
}

// Alerter records alert messages.
type Alerter struct {
	mu       sync.Mutex
	Messages []string
}

func (a *Alerter) Alert(_ context.Context, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Messages = append(a.Messages, message)
}

// Activity is a settable ActivityMonitor.
type Activity struct {
	Admin       bool
	Interaction time.Time
	Loading     bool
}

func (a *Activity) OnAdminRoute() bool { return a.Admin }

func (a *Activity) LastInteraction() time.Time { return a.Interaction }

func (a *Activity) AdminLoading() bool { return a.Loading }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	_ platform.Clock           = (*Clock)(nil)
	_ platform.CacheManager    = (*Caches)(nil)
	_ platform.DatabaseManager = (*Databases)(nil)
	_ platform.ServiceWorkers  = (*Workers)(nil)
	_ platform.Navigator       = (*Navigator)(nil)
	_ platform.Alerter         = (*Alerter)(nil)
	_ platform.ActivityMonitor = (*Activity)(nil)
)
