// Package notify keeps the client's local notification inbox.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edahouse/shopcore/internal/bus"
	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/platform"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	StorageKey = "edahouse_notifications"
	MaxEntries = 50
	MaxAge     = 7 * 24 * time.Hour
)

type Kind string

const (
	KindOrder     Kind = "order"
	KindMarketing Kind = "marketing"
	KindSystem    Kind = "system"
)

// Notification is one inbox entry. Timestamp is in unix milliseconds.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      Kind   `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Inbox stores notifications newest first, keeping at most MaxEntries that are younger than
// MaxAge. Every change is announced on TopicNotificationsUpdated.
type Inbox struct {
	mu      sync.Mutex
	storage platform.Storage
	events  bus.Publisher
	clock   platform.Clock
	log     zerolog.Logger
}

func NewInbox(storage platform.Storage, events bus.Publisher, clock platform.Clock) *Inbox {
	if events == nil {
		events = bus.Discard
	}
	if clock == nil {
		clock = platform.SystemClock
	}
	return &Inbox{storage: storage, events: events, clock: clock, log: logx.Component("notify")}
}

// Add stores a new unread notification. An empty kind is stored as marketing.
func (in *Inbox) Add(ctx context.Context, title, body string, kind Kind) (Notification, error) {
	if kind == "" {
		kind = KindMarketing
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	n := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Type:      kind,
		Timestamp: in.clock.Now().UnixMilli(),
	}
	all := append([]Notification{n}, in.cleanup(in.load(ctx))...)
	if len(all) > MaxEntries {
		all = all[:MaxEntries]
	}
	if err := in.save(ctx, all); err != nil {
		return Notification{}, err
	}
	in.changed()
	return n, nil
}

// List returns the live notifications, newest first, and drops expired ones from storage.
func (in *Inbox) List(ctx context.Context) ([]Notification, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	all := in.cleanup(in.load(ctx))
	if err := in.save(ctx, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (in *Inbox) UnreadCount(ctx context.Context) (int, error) {
	all, err := in.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range all {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead marks one notification read. It reports whether id was found.
func (in *Inbox) MarkRead(ctx context.Context, id string) (bool, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	all := in.load(ctx)
	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].Read = true
		if err := in.save(ctx, all); err != nil {
			return false, err
		}
		in.changed()
		return true, nil
	}
	return false, nil
}

func (in *Inbox) MarkAllRead(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	all := in.load(ctx)
	for i := range all {
		all[i].Read = true
	}
	if err := in.save(ctx, all); err != nil {
		return err
	}
	in.changed()
	return nil
}

func (in *Inbox) Clear(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.save(ctx, []Notification{}); err != nil {
		return err
	}
	in.changed()
	return nil
}

// Follow records a system notification for every test notification the service worker
// relays, until ctx is done or messages closes.
func (in *Inbox) Follow(ctx context.Context, messages <-chan bus.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Topic != bus.TopicWorkerMessage || msg.Data["type"] != string(platform.MsgTestNotification) {
				continue
			}
			if _, err := in.Add(ctx, "Тестовое уведомление", "Push-уведомления работают", KindSystem); err != nil {
				in.log.Warn().Err(err).Msg("failed to store test notification")
			}
		}
	}
}

// load reads the stored list; unreadable data reads as empty.
func (in *Inbox) load(ctx context.Context) []Notification {
	raw, ok, err := in.storage.GetItem(ctx, StorageKey)
	if err != nil {
		in.log.Warn().Err(err).Msg("failed to read notifications")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var all []Notification
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		in.log.Warn().Err(err).Msg("discarding unreadable notifications")
		return nil
	}
	return all
}

func (in *Inbox) save(ctx context.Context, all []Notification) error {
	if all == nil {
		all = []Notification{}
	}
	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	return errx.WrapStorage(in.storage.SetItem(ctx, StorageKey, string(b)))
}

func (in *Inbox) cleanup(all []Notification) []Notification {
	cutoff := in.clock.Now().Add(-MaxAge).UnixMilli()
	kept := all[:0]
	for _, n := range all {
		if n.Timestamp > cutoff {
			kept = append(kept, n)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp > kept[j].Timestamp })
	if len(kept) > MaxEntries {
		kept = kept[:MaxEntries]
	}
	return kept
}

func (in *Inbox) changed() {
	in.events.Publish(bus.Message{Topic: bus.TopicNotificationsUpdated})
}
