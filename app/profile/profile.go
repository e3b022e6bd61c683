// Package profile makes sure every signed-in user has a profile row.
package profile

import (
	"context"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"go.uber.org/zap"
)

// Client is the session-scoped store surface Ensure needs.
type Client interface {
	UpsertProfile(ctx context.Context, email, fullName string) (bool, error)
}

type Welcomer interface {
	SendWelcome(ctx context.Context, to, name string) models.Result
}

type Service struct {
	clients func(userID string) Client
	welcome Welcomer
	log     *zap.Logger
}

func NewService(clients func(userID string) Client, log *zap.Logger) *Service {
	return &Service{clients: clients, log: logging.OrNop(log)}
}

// WithWelcome sends a welcome email the first time a profile is created.
func (s *Service) WithWelcome(w Welcomer) *Service {
	s.welcome = w
	return s
}

// Ensure upserts the caller's profile with free-tier defaults.
func (s *Service) Ensure(ctx context.Context) models.Result {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return models.NotAuthenticated()
	}

	created, err := s.clients(claims.Subject).UpsertProfile(ctx, claims.Email(), claims.Name())
	if err != nil {
		s.log.Error("ensure profile failed", zap.String("user_id", claims.Subject), zap.Error(err))
		return models.Fail(err.Error())
	}

	if created && s.welcome != nil && claims.Email() != "" {
		if res := s.welcome.SendWelcome(ctx, claims.Email(), claims.Name()); !res.OK {
			s.log.Warn("welcome email failed", zap.String("user_id", claims.Subject), zap.String("error", res.Error))
		}
	}
	return models.OK()
}
