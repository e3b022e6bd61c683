package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/gin-gonic/gin"
)

const (
	ensureRoute      = "/api/profile/ensure"
	profileEnsureTTL = 15 * time.Minute
)

// ProfileEnsurer upserts the caller's profile row.
type ProfileEnsurer interface {
	Ensure(ctx context.Context) models.Result
}

// profileGate runs profile bootstrap at most once per subject per TTL in this
// process. The explicit ensure route does its own upsert and refreshes the
// entry instead.
type profileGate struct {
	profiles ProfileEnsurer
	ttl      time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func newProfileGate(p ProfileEnsurer) *profileGate {
	return &profileGate{profiles: p, ttl: profileEnsureTTL, now: time.Now, seen: map[string]time.Time{}}
}

func (g *profileGate) fresh(subject string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.seen[subject]
	if !ok {
		return false
	}
	if g.now().Sub(at) >= g.ttl {
		delete(g.seen, subject)
		return false
	}
	return true
}

func (g *profileGate) mark(subject string) {
	g.mu.Lock()
	g.seen[subject] = g.now()
	g.mu.Unlock()
}

// OnAuthenticated is the auth middleware hook.
func (g *profileGate) OnAuthenticated(c *gin.Context, claims *auth.Claims) error {
	if g == nil || claims == nil || c.FullPath() == ensureRoute || g.fresh(claims.Subject) {
		return nil
	}
	res := g.profiles.Ensure(c.Request.Context())
	if !res.OK {
		return errors.New(res.Error)
	}
	g.mark(claims.Subject)
	return nil
}
