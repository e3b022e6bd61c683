// Package properties implements the owner-scoped property actions.
package properties

import (
	"context"
	"errors"
	"io"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/metrics"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/policy"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/validation"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MsgNotFound = "Property not found"

// Client is the session-scoped store surface the actions use.
type Client interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	CountProperties(ctx context.Context) (int, error)
	Tier(ctx context.Context) (models.Tier, error)
	InsertProperty(ctx context.Context, address string, tier int, licenseID string) (models.Property, error)
	InsertProperties(ctx context.Context, props []models.Property) (int, error)
	UpdateProperty(ctx context.Context, id string, patch models.PropertyPatch) (int64, error)
	DeleteProperty(ctx context.Context, id string) (int64, error)
	MarkMilestone(ctx context.Context, m models.Milestone) error
}

type ListResult struct {
	models.Result
	Properties []models.Property `json:"properties"`
}

type AddResult struct {
	models.Result
	Property *models.Property `json:"property,omitempty"`
}

type ImportResult struct {
	models.Result
	Imported  int                   `json:"imported"`
	RowErrors []validation.RowError `json:"rowErrors,omitempty"`
}

type Service struct {
	clients   func(userID string) Client
	validator *validation.Validator
	log       *zap.Logger
}

func NewService(clients func(userID string) Client, v *validation.Validator, log *zap.Logger) *Service {
	if v == nil {
		v = validation.New()
	}
	return &Service{clients: clients, validator: v, log: logging.OrNop(log)}
}

func (s *Service) client(ctx context.Context) (Client, string, bool) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, "", false
	}
	return s.clients(userID), userID, true
}

// List returns the caller's properties, newest first.
func (s *Service) List(ctx context.Context) ListResult {
	c, _, ok := s.client(ctx)
	if !ok {
		return ListResult{Result: models.NotAuthenticated()}
	}

	props, err := c.ListProperties(ctx)
	if err != nil {
		s.log.Error("list properties failed", zap.Error(err))
		return ListResult{Result: models.Fail(err.Error())}
	}
	return ListResult{Result: models.OK(), Properties: props}
}

// Add validates in and inserts a pending property owned by the caller.
func (s *Service) Add(ctx context.Context, in validation.AddPropertyInput) (res AddResult) {
	defer func() { metrics.Actions.WithLabelValues("add_property", metrics.Result(res.OK)).Inc() }()

	c, userID, ok := s.client(ctx)
	if !ok {
		return AddResult{Result: models.NotAuthenticated()}
	}

	if err := s.validator.AddProperty(&in); err != nil {
		return AddResult{Result: failure(err)}
	}

	if err := s.checkLimit(ctx, c, 1); err != nil {
		return AddResult{Result: failure(err)}
	}

	p, err := c.InsertProperty(ctx, in.Address, in.STROTier, in.LicenseID)
	if err != nil {
		s.log.Error("add property failed", zap.String("user_id", userID), zap.Error(err))
		return AddResult{Result: models.Fail(err.Error())}
	}

	if err := c.MarkMilestone(ctx, models.MilestoneAddedProperty); err != nil {
		s.log.Warn("mark onboarding milestone failed", zap.String("user_id", userID), zap.Error(err))
	}

	return AddResult{Result: models.OK(), Property: &p}
}

// Update applies a partial update to one of the caller's properties.
func (s *Service) Update(ctx context.Context, id string, in validation.UpdatePropertyInput) (res models.Result) {
	defer func() { metrics.Actions.WithLabelValues("update_property", metrics.Result(res.OK)).Inc() }()

	c, userID, ok := s.client(ctx)
	if !ok {
		return models.NotAuthenticated()
	}

	if err := s.validator.UpdateProperty(&in); err != nil {
		return failure(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.Fail(MsgNotFound)
	}

	n, err := c.UpdateProperty(ctx, id, in.Patch())
	if err != nil {
		s.log.Error("update property failed", zap.String("user_id", userID), zap.String("property_id", id), zap.Error(err))
		return models.Fail(err.Error())
	}
	if n == 0 {
		return models.Fail(MsgNotFound)
	}
	return models.OK()
}

// Delete removes one of the caller's properties.
func (s *Service) Delete(ctx context.Context, id string) (res models.Result) {
	defer func() { metrics.Actions.WithLabelValues("delete_property", metrics.Result(res.OK)).Inc() }()

	c, userID, ok := s.client(ctx)
	if !ok {
		return models.NotAuthenticated()
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.Fail(MsgNotFound)
	}

	n, err := c.DeleteProperty(ctx, id)
	if err != nil {
		s.log.Error("delete property failed", zap.String("user_id", userID), zap.String("property_id", id), zap.Error(err))
		return models.Fail(err.Error())
	}
	if n == 0 {
		return models.Fail(MsgNotFound)
	}
	return models.OK()
}

// Import bulk loads valid CSV rows for the caller. Invalid rows are reported
// and skipped; the valid ones are inserted together or not at all.
func (s *Service) Import(ctx context.Context, r io.Reader) (res ImportResult) {
	defer func() { metrics.Actions.WithLabelValues("import_properties", metrics.Result(res.OK)).Inc() }()

	c, userID, ok := s.client(ctx)
	if !ok {
		return ImportResult{Result: models.NotAuthenticated()}
	}

	rows, rowErrs, err := s.validator.ParseCSV(r)
	if err != nil {
		return ImportResult{Result: models.Fail(err.Error())}
	}
	if len(rows) == 0 {
		return ImportResult{Result: models.Fail("No valid rows to import"), RowErrors: rowErrs}
	}

	if err := s.checkLimit(ctx, c, len(rows)); err != nil {
		return ImportResult{Result: failure(err), RowErrors: rowErrs}
	}

	props := make([]models.Property, 0, len(rows))
	for _, row := range rows {
		props = append(props, models.Property{Address: row.Address, STROTier: row.STROTier, LicenseID: row.LicenseID})
	}

	n, err := c.InsertProperties(ctx, props)
	if err != nil {
		s.log.Error("import properties failed", zap.String("user_id", userID), zap.Int("rows", len(props)), zap.Error(err))
		return ImportResult{Result: models.Fail(err.Error()), RowErrors: rowErrs}
	}

	if err := c.MarkMilestone(ctx, models.MilestoneAddedProperty); err != nil {
		s.log.Warn("mark onboarding milestone failed", zap.String("user_id", userID), zap.Error(err))
	}

	return ImportResult{Result: models.OK(), Imported: n, RowErrors: rowErrs}
}

func (s *Service) checkLimit(ctx context.Context, c Client, adding int) error {
	tier, err := c.Tier(ctx)
	if err != nil {
		return err
	}
	current, err := c.CountProperties(ctx)
	if err != nil {
		return err
	}
	return policy.CanAddProperties(tier, current, adding)
}

func failure(err error) models.Result {
	if ve, ok := validation.AsError(err); ok {
		return models.Result{OK: false, Error: ve.First(), Fields: ve.Fields}
	}
	var le policy.LimitError
	if errors.As(err, &le) {
		return models.Fail(le.Error())
	}
	return models.Fail(err.Error())
}
