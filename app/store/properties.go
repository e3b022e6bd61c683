package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/lib/pq"
)

const propertyColumns = `id, user_id, address, stro_tier, license_id, reporting_status, risk_score, last_checked, created_at`

func scanProperty(row interface{ Scan(...any) error }) (models.Property, error) {
	var (
		p           models.Property
		lastChecked sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Address,
		&p.STROTier,
		&p.LicenseID,
		&p.ReportingStatus,
		&p.RiskScore,
		&lastChecked,
		&p.CreatedAt,
	); err != nil {
		return models.Property{}, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastChecked = &t
	}
	return p, nil
}

func (u *UserClient) ListProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE user_id = $1
		ORDER BY created_at DESC;
	`, u.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (u *UserClient) CountProperties(ctx context.Context) (int, error) {
	var n int
	err := u.db.QueryRowContext(ctx, `SELECT count(*) FROM properties WHERE user_id = $1;`, u.userID).Scan(&n)
	return n, err
}

// InsertProperty stores a new pending property owned by the caller.
func (u *UserClient) InsertProperty(ctx context.Context, address string, tier int, licenseID string) (models.Property, error) {
	row := u.db.QueryRowContext(ctx, `
		INSERT INTO properties (user_id, address, stro_tier, license_id, reporting_status, risk_score)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING `+propertyColumns+`;
	`, u.userID, address, tier, licenseID, models.StatusPending)
	return scanProperty(row)
}

// InsertProperties bulk loads rows for the caller in a single transaction.
func (u *UserClient) InsertProperties(ctx context.Context, props []models.Property) (int, error) {
	if len(props) == 0 {
		return 0, nil
	}

	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"properties",
		"user_id", "address", "stro_tier", "license_id", "reporting_status", "risk_score",
	))
	if err != nil {
		return 0, err
	}

	for _, p := range props {
		if _, err := stmt.ExecContext(ctx, u.userID, p.Address, p.STROTier, p.LicenseID, models.StatusPending, 0); err != nil {
			stmt.Close()
			return 0, err
		}
	}

	// finish COPY
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, err
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(props), nil
}

// UpdateProperty applies patch to one of the caller's properties and reports
// how many rows matched.
func (u *UserClient) UpdateProperty(ctx context.Context, id string, patch models.PropertyPatch) (int64, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.STROTier != nil {
		add("stro_tier", *patch.STROTier)
	}
	if patch.LicenseID != nil {
		add("license_id", *patch.LicenseID)
	}
	if patch.ReportingStatus != nil {
		add("reporting_status", string(*patch.ReportingStatus))
	}
	if len(sets) == 0 {
		return 0, nil
	}

	args = append(args, id, u.userID)
	q := fmt.Sprintf(`
		UPDATE properties
		SET %s
		WHERE id = $%d AND user_id = $%d;
	`, strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := u.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (u *UserClient) DeleteProperty(ctx context.Context, id string) (int64, error) {
	res, err := u.db.ExecContext(ctx, `
		DELETE FROM properties
		WHERE id = $1 AND user_id = $2;
	`, id, u.userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MonitoredProperties lists every property across all owners.
func (s *Store) MonitoredProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MarkPropertyViolation(ctx context.Context, id string, riskScore int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET reporting_status = $1, risk_score = $2, last_checked = now()
		WHERE id = $3;
	`, models.StatusViolation, riskScore, id)
	return err
}

// InsertOrdinance stores a violation once per municipal case id. It reports
// false when the case was already known.
func (s *Store) InsertOrdinance(ctx context.Context, o models.Ordinance) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ordinances (property_id, violation_type, violation_date, description, fine_amount, status, municipal_case_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (municipal_case_id) DO NOTHING;
	`, o.PropertyID, o.ViolationType, o.ViolationDate, nullIfEmpty(o.Description), o.FineAmount, o.Status, o.MunicipalCaseID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
