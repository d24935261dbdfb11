package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
)

type servicesRepo struct {
	db *sql.DB
}

func (r *servicesRepo) GetServiceByID(ctx context.Context, id string) (domain.RegisteredService, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, redirect_uris, enabled, allowed_principals,
		       require_consent, created_at, updated_at
		FROM services WHERE id = ?`, id)

	var (
		svc                  domain.RegisteredService
		uris, principals     string
		createdNano, updNano int64
	)
	err := row.Scan(&svc.ID, &svc.Name, &uris, &svc.Enabled, &principals,
		&svc.RequireConsent, &createdNano, &updNano)
	if err != nil {
		return domain.RegisteredService{}, mapNotFound(err)
	}
	svc.RedirectURIs = splitFields(uris)
	svc.AllowedPrincipals = splitFields(principals)
	svc.CreatedAt = fromUnixNano(createdNano)
	svc.UpdatedAt = fromUnixNano(updNano)
	return svc, nil
}

func (r *servicesRepo) CreateService(ctx context.Context, s domain.RegisteredService) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO services (id, name, redirect_uris, enabled,
			allowed_principals, require_consent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.Name, joinFields(s.RedirectURIs), s.Enabled,
		joinFields(s.AllowedPrincipals), s.RequireConsent,
		toUnixNano(s.CreatedAt), toUnixNano(s.UpdatedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *servicesRepo) ListServices(ctx context.Context) ([]domain.RegisteredService, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, redirect_uris, enabled, allowed_principals,
		       require_consent, created_at, updated_at
		FROM services ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RegisteredService
	for rows.Next() {
		var (
			svc                  domain.RegisteredService
			uris, principals     string
			createdNano, updNano int64
		)
		if err := rows.Scan(&svc.ID, &svc.Name, &uris, &svc.Enabled,
			&principals, &svc.RequireConsent, &createdNano, &updNano); err != nil {
			return nil, err
		}
		svc.RedirectURIs = splitFields(uris)
		svc.AllowedPrincipals = splitFields(principals)
		svc.CreatedAt = fromUnixNano(createdNano)
		svc.UpdatedAt = fromUnixNano(updNano)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r *servicesRepo) DeleteService(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
