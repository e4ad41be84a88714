package push

import (
	"context"
	"strconv"
	"time"

	"github.com/edahouse/shopcore/internal/bus"
	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/platform"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
)

// Local storage keys.
const (
	KeyVisitCount         = "site-visit-count"
	KeyLastVisit          = "site-last-visit"
	KeyInstallDismissed   = "pwa-dismissed"
	KeyIOSPromptShown     = "ios-prompt-shown"
	KeyIOSPromptShownTime = "ios-prompt-shown-time"
	KeyPushRequested      = "push-permission-requested"
)

// KeyInstallPromptShowing is the session storage flag set while the install prompt is up.
const KeyInstallPromptShowing = "pwa-prompt-showing"

// RoleAdmin always gets the push request.
const RoleAdmin = "admin"

const (
	visitGap          = time.Hour
	installCooldown   = 7 * 24 * time.Hour
	pushCooldown      = 3 * 24 * time.Hour
	minInstallVisits  = 2
	promptFlagEnabled = "true"
)

// Permission is the notification permission state of the browser.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"

	// PermissionUnsupported means the platform has no notification API.
	PermissionUnsupported Permission = ""
)

// PromptPolicy decides when the install prompt and the push permission request may appear.
type PromptPolicy struct {
	Local      platform.Storage
	Session    platform.Storage
	Navigator  platform.Navigator
	Clock      platform.Clock
	Role       string
	Permission Permission

	log zerolog.Logger
}

func NewPromptPolicy(local, session platform.Storage, nav platform.Navigator, role string, permission Permission) *PromptPolicy {
	return &PromptPolicy{
		Local:      local,
		Session:    session,
		Navigator:  nav,
		Clock:      platform.SystemClock,
		Role:       role,
		Permission: permission,
		log:        logx.Component("prompt"),
	}
}

// TrackVisit counts a visit when the previous one is more than an hour old and returns the
// visit count.
func (p *PromptPolicy) TrackVisit(ctx context.Context) (int, error) {
	now := p.Clock.Now()
	count, err := p.VisitCount(ctx)
	if err != nil {
		return 0, err
	}
	last, ok, err := p.millis(ctx, p.Local, KeyLastVisit)
	if err != nil {
		return 0, err
	}
	if ok && now.Sub(last) <= visitGap {
		return count, nil
	}

	count++
	if err := p.Local.SetItem(ctx, KeyVisitCount, strconv.Itoa(count)); err != nil {
		return 0, errx.WrapStorage(err)
	}
	if err := p.Local.SetItem(ctx, KeyLastVisit, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return 0, errx.WrapStorage(err)
	}
	return count, nil
}

func (p *PromptPolicy) VisitCount(ctx context.Context) (int, error) {
	raw, _, err := p.Local.GetItem(ctx, KeyVisitCount)
	if err != nil {
		return 0, errx.WrapStorage(err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ShouldShowInstallPrompt applies the install prompt rules: mobile only, not when already
// installed, a week after a dismissal, on iOS a week after it was last shown, and only for
// visitors who came back at least once.
func (p *PromptPolicy) ShouldShowInstallPrompt(ctx context.Context) (bool, error) {
	ua := p.Navigator.UserAgent()
	if !platform.IsMobile(ua) {
		return p.skip("install", "desktop device")
	}
	if p.Navigator.Standalone() {
		return p.skip("install", "already installed")
	}

	now := p.Clock.Now()
	dismissed, ok, err := p.millis(ctx, p.Local, KeyInstallDismissed)
	if err != nil {
		return false, err
	}
	if ok && now.Sub(dismissed) < installCooldown {
		return p.skip("install", "recently dismissed")
	}

	if platform.IsIOS(ua) {
		shown, _, err := p.Local.GetItem(ctx, KeyIOSPromptShown)
		if err != nil {
			return false, errx.WrapStorage(err)
		}
		if shown == promptFlagEnabled {
			at, ok, err := p.millis(ctx, p.Local, KeyIOSPromptShownTime)
			if err != nil {
				return false, err
			}
			if !ok || now.Sub(at) < installCooldown {
				return p.skip("install", "recently shown on ios")
			}
		}
	}

	visits, err := p.VisitCount(ctx)
	if err != nil {
		return false, err
	}
	if visits < minInstallVisits {
		return p.skip("install", "not enough visits")
	}
	return true, nil
}

// MarkInstallPromptDismissed starts the install prompt cooldown.
func (p *PromptPolicy) MarkInstallPromptDismissed(ctx context.Context, ios bool) error {
	now := strconv.FormatInt(p.Clock.Now().UnixMilli(), 10)
	if ios {
		if err := p.Local.SetItem(ctx, KeyIOSPromptShown, promptFlagEnabled); err != nil {
			return errx.WrapStorage(err)
		}
		return errx.WrapStorage(p.Local.SetItem(ctx, KeyIOSPromptShownTime, now))
	}
	return errx.WrapStorage(p.Local.SetItem(ctx, KeyInstallDismissed, now))
}

// SetInstallPromptShowing flags, for this session, that the install prompt is on screen.
func (p *PromptPolicy) SetInstallPromptShowing(ctx context.Context, showing bool) error {
	if showing {
		return errx.WrapStorage(p.Session.SetItem(ctx, KeyInstallPromptShowing, promptFlagEnabled))
	}
	return errx.WrapStorage(p.Session.RemoveItem(ctx, KeyInstallPromptShowing))
}

// ShouldShowPushRequest applies the push permission rules. Admins always get it. Otherwise
// the permission must still be undecided, the last request at least three days old, iOS
// must run the installed app, and the install prompt must not be showing.
func (p *PromptPolicy) ShouldShowPushRequest(ctx context.Context) (bool, error) {
	if p.Role == RoleAdmin {
		return true, nil
	}
	if p.Permission != PermissionUnsupported && p.Permission != PermissionDefault {
		return p.skip("push", "permission already "+string(p.Permission))
	}

	requested, ok, err := p.millis(ctx, p.Local, KeyPushRequested)
	if err != nil {
		return false, err
	}
	if ok && p.Clock.Now().Sub(requested) < pushCooldown {
		return p.skip("push", "recently requested")
	}

	if platform.IsIOS(p.Navigator.UserAgent()) && !p.Navigator.Standalone() {
		return p.skip("push", "ios outside the installed app")
	}

	showing, _, err := p.Session.GetItem(ctx, KeyInstallPromptShowing)
	if err != nil {
		return false, errx.WrapStorage(err)
	}
	if showing == promptFlagEnabled {
		return p.skip("push", "install prompt showing")
	}
	return true, nil
}

// MarkPushRequestShown starts the push request cooldown.
func (p *PromptPolicy) MarkPushRequestShown(ctx context.Context) error {
	return errx.WrapStorage(p.Local.SetItem(ctx, KeyPushRequested, strconv.FormatInt(p.Clock.Now().UnixMilli(), 10)))
}

// ClearPromptData forgets every prompt decision.
func (p *PromptPolicy) ClearPromptData(ctx context.Context) error {
	for _, key := range []string{KeyInstallDismissed, KeyIOSPromptShown, KeyIOSPromptShownTime, KeyPushRequested, KeyVisitCount, KeyLastVisit} {
		if err := p.Local.RemoveItem(ctx, key); err != nil {
			return errx.WrapStorage(err)
		}
	}
	return errx.WrapStorage(p.Session.RemoveItem(ctx, KeyInstallPromptShowing))
}

// Follow consumes prompt triggers until ctx is done or the channel closes. For each trigger
// that passes ShouldShowPushRequest, the request is marked shown and ask is called with the
// triggering action.
func (p *PromptPolicy) Follow(ctx context.Context, triggers <-chan bus.Message, ask func(ctx context.Context, action string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-triggers:
			if !ok {
				return nil
			}
			if msg.Topic != bus.TopicPromptTrigger {
				continue
			}
			show, err := p.ShouldShowPushRequest(ctx)
			if err != nil {
				p.log.Warn().Err(err).Msg("push prompt check failed")
				continue
			}
			if !show {
				continue
			}
			if err := p.MarkPushRequestShown(ctx); err != nil {
				p.log.Warn().Err(err).Msg("failed to record push prompt")
			}
			ask(ctx, msg.Data["action"])
		}
	}
}

func (p *PromptPolicy) skip(prompt, reason string) (bool, error) {
	p.log.Debug().Str("prompt", prompt).Str("reason", reason).Msg("prompt skipped")
	return false, nil
}

// millis reads a millisecond timestamp; a missing or malformed value reports false.
func (p *PromptPolicy) millis(ctx context.Context, s platform.Storage, key string) (time.Time, bool, error) {
	raw, ok, err := s.GetItem(ctx, key)
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
