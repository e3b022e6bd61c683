// Package onboarding tracks first-run milestones and exposes the caller's tier.
package onboarding

import (
	"context"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"go.uber.org/zap"
)

const MsgUnknownMilestone = "Unknown milestone"

type Client interface {
	Tier(ctx context.Context) (models.Tier, error)
	OnboardingProgress(ctx context.Context) (models.OnboardingProgress, error)
	MarkMilestone(ctx context.Context, m models.Milestone) error
}

type TierResult struct {
	models.Result
	Tier models.Tier `json:"tier"`
}

type ProgressResult struct {
	models.Result
	Progress models.OnboardingProgress `json:"progress"`
}

type Service struct {
	clients func(userID string) Client
	log     *zap.Logger
}

func NewService(clients func(userID string) Client, log *zap.Logger) *Service {
	return &Service{clients: clients, log: logging.OrNop(log)}
}

// Tier falls back to free when the profile cannot be read.
func (s *Service) Tier(ctx context.Context) TierResult {
	userID := auth.UserID(ctx)
	if userID == "" {
		return TierResult{Result: models.NotAuthenticated(), Tier: models.TierFree}
	}
	tier, err := s.clients(userID).Tier(ctx)
	if err != nil {
		s.log.Warn("tier lookup failed", zap.String("user_id", userID), zap.Error(err))
		return TierResult{Result: models.OK(), Tier: models.TierFree}
	}
	if !tier.Valid() {
		tier = models.TierFree
	}
	return TierResult{Result: models.OK(), Tier: tier}
}

func (s *Service) Progress(ctx context.Context) ProgressResult {
	userID := auth.UserID(ctx)
	if userID == "" {
		return ProgressResult{Result: models.NotAuthenticated()}
	}
	p, err := s.clients(userID).OnboardingProgress(ctx)
	if err != nil {
		s.log.Error("onboarding progress failed", zap.String("user_id", userID), zap.Error(err))
		return ProgressResult{Result: models.Fail(err.Error())}
	}
	return ProgressResult{Result: models.OK(), Progress: p}
}

func (s *Service) MarkMilestone(ctx context.Context, m models.Milestone) models.Result {
	userID := auth.UserID(ctx)
	if userID == "" {
		return models.NotAuthenticated()
	}
	if _, ok := m.TimestampColumn(); !ok {
		return models.Fail(MsgUnknownMilestone)
	}
	if err := s.clients(userID).MarkMilestone(ctx, m); err != nil {
		s.log.Error("mark milestone failed", zap.String("user_id", userID), zap.String("milestone", string(m)), zap.Error(err))
		return models.Fail(err.Error())
	}
	return models.OK()
}
