package portal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
)

type ProfileAPI interface {
	BusinessProfile(ctx context.Context) (apiclient.BusinessProfile, error)
}

// Layout is the dashboard or portal shell: it guards entry, loads the
// business profile and owns the notification bell until logout.
type Layout struct {
	area     Area
	session  *session.Session
	profiles ProfileAPI
	bell     *NotificationBell
	logger   *zap.Logger

	mu          sync.Mutex
	mounted     bool
	profile     *apiclient.BusinessProfile
	stopObserve func()
}

func NewLayout(area Area, sess *session.Session, profiles ProfileAPI, bell *NotificationBell, logger *zap.Logger) *Layout {
	return &Layout{area: area, session: sess, profiles: profiles, bell: bell, logger: logger}
}

// Mount runs the guard. When entry is allowed it loads the profile and
// mounts the bell; a profile failure is logged and leaves the bell unmounted.
func (l *Layout) Mount(ctx context.Context) Decision {
	d := Guard(l.session.Current(), l.area)
	if !d.Allow {
		return d
	}

	l.mu.Lock()
	if l.mounted {
		l.mu.Unlock()
		return d
	}
	l.mounted = true
	l.stopObserve = l.session.Observe(func(st session.State) {
		if !st.SignedIn() {
			l.Unmount()
		}
	})
	l.mu.Unlock()

	profile, err := l.profiles.BusinessProfile(ctx)
	if err != nil {
		l.logger.Error("failed to fetch business profile", zap.String("area", string(l.area)), zap.Error(err))
		return d
	}

	l.mu.Lock()
	if !l.mounted {
		l.mu.Unlock()
		return d
	}
	l.profile = &profile
	l.mu.Unlock()

	if err := l.bell.Mount(ctx); err != nil {
		l.logger.Warn("notification bell not ready", zap.Error(err))
	}

	l.mu.Lock()
	stillMounted := l.mounted
	l.mu.Unlock()
	if !stillMounted {
		l.bell.Unmount()
	}
	return d
}

func (l *Layout) Unmount() {
	l.mu.Lock()
	if !l.mounted {
		l.mu.Unlock()
		return
	}
	l.mounted = false
	l.profile = nil
	stop := l.stopObserve
	l.stopObserve = nil
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	l.bell.Unmount()
}

func (l *Layout) Profile() (apiclient.BusinessProfile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.profile == nil {
		return apiclient.BusinessProfile{}, false
	}
	return *l.profile, true
}

func (l *Layout) Bell() *NotificationBell { return l.bell }
