package update

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
)

// Local storage keys. Both spellings of hash and version are written because older and newer
// clients read different ones.
const (
	KeyAppHash           = "app_hash"
	KeyAppHashDashed     = "app-hash"
	KeyAppVersion        = "app_version"
	KeyAppVersionDashed  = "app-version"
	KeyBuildTime         = "build_time"
	KeyLastUpdate        = "last_update"
	KeyLastProcessedHash = "last_processed_hash"
	KeyProcessedHashes   = "processed_hashes"
)

// TrackingKeys survive a purge of local storage.
var TrackingKeys = []string{
	KeyAppHash, KeyAppHashDashed,
	KeyAppVersion, KeyAppVersionDashed,
	KeyBuildTime,
	KeyLastUpdate,
	KeyLastProcessedHash,
	KeyProcessedHashes,
}

// Tracker reads and writes the update bookkeeping kept in local storage.
type Tracker struct {
	storage platform.Storage
}

func NewTracker(storage platform.Storage) *Tracker {
	return &Tracker{storage: storage}
}

// Current returns the stored fingerprint and whether any hash was stored at all.
func (t *Tracker) Current(ctx context.Context) (model.Fingerprint, bool, error) {
	hash, err := t.first(ctx, KeyAppHash, KeyAppHashDashed)
	if err != nil {
		return model.Fingerprint{}, false, err
	}
	version, err := t.first(ctx, KeyAppVersion, KeyAppVersionDashed)
	if err != nil {
		return model.Fingerprint{}, false, err
	}
	buildTime, _, err := t.storage.GetItem(ctx, KeyBuildTime)
	if err != nil {
		return model.Fingerprint{}, false, errx.WrapStorage(err)
	}
	fp := model.Fingerprint{AppHash: hash, Version: version, BuildTime: buildTime}
	return fp, hash != "", nil
}

// Remember stores fp as the current server state.
func (t *Tracker) Remember(ctx context.Context, fp model.Fingerprint) error {
	return t.set(ctx, map[string]string{
		KeyAppHash:          fp.AppHash,
		KeyAppHashDashed:    fp.AppHash,
		KeyAppVersion:       fp.Version,
		KeyAppVersionDashed: fp.Version,
		KeyBuildTime:        fp.BuildTime,
	})
}

// LastUpdate returns when an update was last applied.
func (t *Tracker) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := t.storage.GetItem(ctx, KeyLastUpdate)
	if err != nil {
		return time.Time{}, false, errx.WrapStorage(err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// Processed reports whether hash was already handled, either as the last processed hash or
// in the permanent list.
func (t *Tracker) Processed(ctx context.Context, hash string) (bool, error) {
	last, _, err := t.storage.GetItem(ctx, KeyLastProcessedHash)
	if err != nil {
		return false, errx.WrapStorage(err)
	}
	if last != "" && last == hash {
		return true, nil
	}
	hashes, err := t.ProcessedHashes(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(hashes, hash), nil
}

// ProcessedHashes returns the permanent list. An unreadable list reads as empty.
func (t *Tracker) ProcessedHashes(ctx context.Context) ([]string, error) {
	raw, ok, err := t.storage.GetItem(ctx, KeyProcessedHashes)
	if err != nil {
		return nil, errx.WrapStorage(err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var hashes []string
	if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
		logx.Warn().Err(err).Str("key", KeyProcessedHashes).Msg("ignoring unreadable processed hash list")
		return nil, nil
	}
	return hashes, nil
}

// MarkApplied records that hash was applied at the given time and adds it to the permanent
// list.
func (t *Tracker) MarkApplied(ctx context.Context, hash string, at time.Time) error {
	hashes, err := t.ProcessedHashes(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(hashes, hash) {
		hashes = append(hashes, hash)
	}
	list, err := json.Marshal(hashes)
	if err != nil {
		return err
	}
	return t.set(ctx, map[string]string{
		KeyLastUpdate:        strconv.FormatInt(at.UnixMilli(), 10),
		KeyLastProcessedHash: hash,
		KeyProcessedHashes:   string(list),
	})
}

// Snapshot copies the tracking keys that are present.
func (t *Tracker) Snapshot(ctx context.Context) (map[string]string, error) {
	snap := make(map[string]string, len(TrackingKeys))
	for _, key := range TrackingKeys {
		v, ok, err := t.storage.GetItem(ctx, key)
		if err != nil {
			return nil, errx.WrapStorage(err)
		}
		if ok {
			snap[key] = v
		}
	}
	return snap, nil
}

// Restore writes a snapshot back.
func (t *Tracker) Restore(ctx context.Context, snap map[string]string) error {
	return t.set(ctx, snap)
}

func (t *Tracker) first(ctx context.Context, keys ...string) (string, error) {
	for _, key := range keys {
		v, ok, err := t.storage.GetItem(ctx, key)
		if err != nil {
			return "", errx.WrapStorage(err)
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (t *Tracker) set(ctx context.Context, values map[string]string) error {
	for _, key := range TrackingKeys {
		v, ok := values[key]
		if !ok {
			continue
		}
		if err := t.storage.SetItem(ctx, key, v); err != nil {
			return errx.WrapStorage(err)
		}
	}
	return nil
}
