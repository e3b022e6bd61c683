// Package notify sends compliance alerts to property owners who opted in.
package notify

import (
	"context"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/policy"

	"go.uber.org/zap"
)

const MsgNoEmail = "No email for user"

type TargetLookup interface {
	NotificationTarget(ctx context.Context, userID string) (models.NotificationTarget, error)
}

type Mailer interface {
	SendComplianceViolation(ctx context.Context, to string, v models.Violation) models.Result
}

type Dispatcher struct {
	targets TargetLookup
	mailer  Mailer
	log     *zap.Logger
}

func NewDispatcher(targets TargetLookup, mailer Mailer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{targets: targets, mailer: mailer, log: logging.OrNop(log)}
}

// SendViolation emails userID about v unless they have no address on file or
// turned notifications off. Opting out counts as success.
func (d *Dispatcher) SendViolation(ctx context.Context, userID string, v models.Violation) models.Result {
	target, err := d.targets.NotificationTarget(ctx, userID)
	if err != nil {
		// an unreadable profile is treated the same as one without an email
		d.log.Error("notification target lookup failed", zap.String("user_id", userID), zap.Error(err))
		target = models.NotificationTarget{UserID: userID}
	}

	switch policy.Notify(target) {
	case policy.FailNoEmail:
		return models.Fail(MsgNoEmail)
	case policy.SkipOptedOut:
		d.log.Debug("violation email skipped; user opted out", zap.String("user_id", userID))
		return models.OK()
	}

	return d.mailer.SendComplianceViolation(ctx, target.Email, v)
}
