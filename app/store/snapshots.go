package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/lib/pq"
)

// SnapshotLicenseIDsBefore returns every license id ingested before cutoff.
func (s *Store) SnapshotLicenseIDsBefore(ctx context.Context, cutoff time.Time) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT license_id FROM stro_snapshots WHERE ingested_at < $1;
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) InsertSnapshots(ctx context.Context, snaps []models.STROSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"stro_snapshots",
		"license_id", "address", "zip", "tier", "expiration_date",
		"local_contact_name", "local_contact_phone", "host_contact_name",
	))
	if err != nil {
		return err
	}

	for _, sn := range snaps {
		if _, err := stmt.ExecContext(ctx,
			sn.LicenseID,
			nullIfEmpty(sn.Address),
			nullIfEmpty(sn.Zip),
			nullIfEmpty(sn.Tier),
			nullIfEmpty(sn.ExpirationDate),
			nullIfEmpty(sn.LocalContactName),
			nullIfEmpty(sn.LocalContactPhone),
			nullIfEmpty(sn.HostContactName),
		); err != nil {
			stmt.Close()
			return err
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// ExpiringLicenses returns one row per license whose expiration falls in
// [from, to], soonest first.
func (s *Store) ExpiringLicenses(ctx context.Context, from, to time.Time) ([]models.ExpiringLicense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			license_id,
			to_char(expiration_date, 'YYYY-MM-DD'),
			COALESCE(address, ''),
			COALESCE(zip, ''),
			COALESCE(local_contact_name, ''),
			COALESCE(local_contact_phone, '')
		FROM stro_snapshots
		WHERE expiration_date IS NOT NULL
		  AND expiration_date BETWEEN $1::date AND $2::date
		ORDER BY expiration_date ASC, ingested_at DESC;
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []models.ExpiringLicense
	for rows.Next() {
		var e models.ExpiringLicense
		if err := rows.Scan(&e.LicenseID, &e.ExpirationDate, &e.Address, &e.Zip, &e.LocalContactName, &e.LocalContactPhone); err != nil {
			return nil, err
		}
		if _, dup := seen[e.LicenseID]; dup {
			continue
		}
		seen[e.LicenseID] = struct{}{}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentSnapshots returns the newest snapshot per license ingested since the
// given time in any of zips.
func (s *Store) RecentSnapshots(ctx context.Context, since time.Time, zips []string) ([]models.STROSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (license_id)
			license_id, COALESCE(address, ''), COALESCE(zip, '')
		FROM stro_snapshots
		WHERE ingested_at >= $1 AND zip = ANY($2)
		ORDER BY license_id, ingested_at DESC;
	`, since, pq.Array(zips))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.STROSnapshot
	for rows.Next() {
		var sn models.STROSnapshot
		if err := rows.Scan(&sn.LicenseID, &sn.Address, &sn.Zip); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}
