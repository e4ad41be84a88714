package update

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/platform/platformtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeKeepsTrackingKeys(t *testing.T) {
	ctx := context.Background()
	local, session := platform.NewMemoryStorage(), platform.NewMemoryStorage()
	require.NoError(t, local.SetItem(ctx, KeyAppHash, "H1"))
	require.NoError(t, local.SetItem(ctx, KeyProcessedHashes, `["H1"]`))
	require.NoError(t, local.SetItem(ctx, "restaurant-cart-storage", "{}"))
	require.NoError(t, session.SetItem(ctx, "x", "1"))

	p := NewPurger(nil, nil, nil, local, session)
	report := p.Purge(ctx)
	require.NoError(t, report.Err())

	keys, _ := local.Keys(ctx)
	assert.ElementsMatch(t, []string{KeyAppHash, KeyProcessedHashes}, keys)
	keys, _ = session.Keys(ctx)
	assert.Empty(t, keys)
}

func TestPurgeToleratesPartialFailure(t *testing.T) {
	ctx := context.Background()
	caches := platformtest.NewCaches("a", "b", "c")
	caches.Fail["b"] = true
	dbs := platformtest.NewDatabases("one", "two")
	dbs.Blocked["one"] = true
	workers := platformtest.NewWorkers("/", "/admin")
	failing := &platformtest.FailingStorage{Storage: platform.NewMemoryStorage(), FailClear: errors.New("locked")}

	report := NewPurger(caches, dbs, workers, failing, platform.NewMemoryStorage()).Purge(ctx)

	assert.Equal(t, []string{"a", "c"}, report.Caches)
	assert.Equal(t, []string{"two"}, report.Databases)
	assert.Equal(t, []string{"/", "/admin"}, report.Registrations)
	assert.Len(t, report.Errors, 3)
	assert.Error(t, report.Err())
}

func TestPurgeClearsSessionWhenSnapshotFails(t *testing.T) {
	ctx := context.Background()
	mem := platform.NewMemoryStorage()
	require.NoError(t, mem.SetItem(ctx, KeyAppHash, "H1"))
	require.NoError(t, mem.SetItem(ctx, "restaurant-cart-storage", "{}"))
	local := &platformtest.FailingStorage{Storage: mem, FailGet: errors.New("quota exceeded")}
	session := platform.NewMemoryStorage()
	require.NoError(t, session.SetItem(ctx, "x", "1"))
	caches := platformtest.NewCaches("a")

	report := NewPurger(caches, nil, nil, local, session).Purge(ctx)

	require.Len(t, report.Errors, 1)
	assert.ErrorContains(t, report.Err(), "quota exceeded")
	keys, _ := session.Keys(ctx)
	assert.Empty(t, keys)
	keys, _ = mem.Keys(ctx)
	assert.ElementsMatch(t, []string{KeyAppHash, "restaurant-cart-storage"}, keys)
	assert.Equal(t, []string{"a"}, report.Caches)
}

func TestPurgeReportCriticalSkipsDatabases(t *testing.T) {
	ctx := context.Background()
	dbs := platformtest.NewDatabases("keyval-store")
	dbs.Blocked["keyval-store"] = true

	report := NewPurger(nil, dbs, nil, nil, nil).Purge(ctx)
	assert.Error(t, report.Err())
	assert.NoError(t, report.Critical())

	var step *StepError
	require.ErrorAs(t, report.Err(), &step)
	assert.True(t, step.Database)
	assert.Equal(t, "delete database keyval-store", step.Step)
}

func TestPurgeWithoutServiceWorkers(t *testing.T) {
	ctx := context.Background()
	dbs := platformtest.NewDatabases()
	dbs.ListErr = platform.ErrUnsupported

	report := NewPurger(platformtest.NewCaches("a"), dbs, platform.NoServiceWorkers{}, nil, nil).Purge(ctx)
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"a"}, report.Caches)
}

func TestManualClearDesktop(t *testing.T) {
	ctx := context.Background()
	workers := platformtest.NewWorkers("/")
	nav := &platformtest.Navigator{Page: "https://shop.example/admin", Agent: desktopUA}
	alerts := &platformtest.Alerter{}
	m := &ManualClear{
		Purger:    NewPurger(platformtest.NewCaches("a"), nil, workers, platform.NewMemoryStorage(), nil),
		Workers:   workers,
		Navigator: nav,
		Alerter:   alerts,
	}

	require.NoError(t, m.Run(ctx))
	require.Len(t, workers.Posted(), 1)
	assert.Equal(t, platform.MsgForceUpdate, workers.Posted()[0].Type)
	assert.Equal(t, []string{msgCacheCleared}, alerts.Messages)
	reloads, replaced := nav.Navigations()
	assert.Equal(t, 1, reloads)
	assert.Empty(t, replaced)
}

func TestManualClearMobile(t *testing.T) {
	ctx := context.Background()
	nav := &platformtest.Navigator{Page: "https://shop.example/admin?tab=cache", Agent: iphoneUA}
	m := &ManualClear{
		Purger:    NewPurger(nil, nil, nil, platform.NewMemoryStorage(), platform.NewMemoryStorage()),
		Workers:   platform.NoServiceWorkers{},
		Navigator: nav,
		Alerter:   &platformtest.Alerter{},
		Clock:     platformtest.NewClock(epoch),
	}

	require.NoError(t, m.Run(ctx))
	reloads, replaced := nav.Navigations()
	assert.Equal(t, 0, reloads)
	assert.Equal(t, []string{"https://shop.example/admin?cache_bust=1717243200000&mobile=1"}, replaced)
}

func TestManualClearFallsBackToReload(t *testing.T) {
	ctx := context.Background()
	caches := platformtest.NewCaches("a")
	caches.KeysErr = errors.New("storage disabled")
	nav := &platformtest.Navigator{Page: "https://shop.example/admin", Agent: iphoneUA}
	alerts := &platformtest.Alerter{}
	m := &ManualClear{
		Purger:        NewPurger(caches, nil, nil, nil, nil),
		Navigator:     nav,
		Alerter:       alerts,
		FallbackDelay: time.Millisecond,
	}

	err := m.Run(ctx)
	require.Error(t, err)
	require.Len(t, alerts.Messages, 1)
	assert.Contains(t, alerts.Messages[0], msgCacheClearFailed)
	assert.Contains(t, alerts.Messages[0], "storage disabled")
	reloads, replaced := nav.Navigations()
	assert.Equal(t, 1, reloads)
	assert.Empty(t, replaced)
}

func TestManualClearIgnoresBlockedDatabase(t *testing.T) {
	ctx := context.Background()
	dbs := platformtest.NewDatabases("keyval-store")
	dbs.Blocked["keyval-store"] = true
	nav := &platformtest.Navigator{Page: "https://shop.example/admin", Agent: desktopUA}
	alerts := &platformtest.Alerter{}
	m := &ManualClear{
		Purger:    NewPurger(nil, dbs, nil, platform.NewMemoryStorage(), nil),
		Navigator: nav,
		Alerter:   alerts,
	}

	require.NoError(t, m.Run(ctx))
	assert.Equal(t, []string{msgCacheCleared}, alerts.Messages)
	reloads, _ := nav.Navigations()
	assert.Equal(t, 1, reloads)
}

func TestManualClearWithoutAlerter(t *testing.T) {
	ctx := context.Background()
	nav := &platformtest.Navigator{Page: "https://shop.example/admin", Agent: desktopUA}
	m := &ManualClear{Navigator: nav}

	require.NotPanics(t, func() { require.NoError(t, m.Run(ctx)) })
	reloads, _ := nav.Navigations()
	assert.Equal(t, 1, reloads)

	assert.Error(t, (&ManualClear{}).Run(ctx))
}

func TestReloadURLs(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "https://a.example/?ios_force_reload=1700000000000&t=1700000000000&cache_bust=1", IOSReloadURL("https://a.example/?x=1", now))
	assert.Equal(t, "https://a.example/p?cache_bust=1700000000000&mobile=1", ManualReloadURL("https://a.example/p#frag", now))
}
