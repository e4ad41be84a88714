// Package platform describes the browser capabilities the storefront logic relies on as small
// interfaces, so cart and update code can run against Redis, the filesystem or in-memory fakes.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned by a capability that does not exist on the current platform.
var ErrUnsupported = errors.New("capability not supported on this platform")

// Storage is a string key/value area in the manner of localStorage and sessionStorage.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}

// CacheManager is the Cache Storage API: named caches of HTTP responses.
type CacheManager interface {
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// DatabaseManager is the IndexedDB factory.
type DatabaseManager interface {
	Databases(ctx context.Context) ([]string, error)
	DeleteDatabase(ctx context.Context, name string) error
}

// MessageType names a message exchanged with the service worker.
type MessageType string

const (
	// Sent to the worker.
	MsgForceUpdate MessageType = "FORCE_UPDATE"
	MsgSkipWaiting MessageType = "SKIP_WAITING"

	// Received from the worker.
	MsgNewVersionAvailable MessageType = "NEW_VERSION_AVAILABLE"
	MsgTestNotification    MessageType = "test-pwa-notification"
)

// WorkerMessage is the payload of a postMessage call in either direction.
type WorkerMessage struct {
	Type MessageType    `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Registration is one service worker registration.
type Registration struct {
	Scope      string
	HasWaiting bool
}

// ServiceWorkers is the navigator.serviceWorker container.
type ServiceWorkers interface {
	Registrations(ctx context.Context) ([]Registration, error)
	Unregister(ctx context.Context, scope string) error
	// PostMessage delivers msg to the active worker, or to the waiting one for SKIP_WAITING.
	PostMessage(ctx context.Context, msg WorkerMessage) error
	// Messages streams messages posted by workers. The channel is closed when the container
	// shuts down; nil means the platform never delivers any.
	Messages() <-chan WorkerMessage
}

// Navigator controls the running page.
type Navigator interface {
	URL() string
	UserAgent() string
	Standalone() bool
	Reload(ctx context.Context) error
	Replace(ctx context.Context, url string) error
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// ActivityMonitor reports what the user is doing right now.
type ActivityMonitor interface {
	OnAdminRoute() bool
	LastInteraction() time.Time
	AdminLoading() bool
}

// Clock is the time source; tests replace it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
