package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
)

type otpAccountsRepo struct {
	db *sql.DB
}

func (r *otpAccountsRepo) CreateAccount(ctx context.Context, a domain.OneTimeTokenAccount) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_accounts (username, secret_key, validation_code,
			scratch_codes, registration_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING`,
		a.Username, a.SecretKey, a.ValidationCode,
		joinCodes(a.ScratchCodes), a.RegistrationDate.UTC().Unix(),
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

func (r *otpAccountsRepo) GetAccount(ctx context.Context, username string) (domain.OneTimeTokenAccount, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, secret_key, validation_code, scratch_codes, registration_date
		FROM otp_accounts WHERE username = ?`, username)

	var (
		a       domain.OneTimeTokenAccount
		codes   string
		regUnix int64
	)
	if err := row.Scan(&a.Username, &a.SecretKey, &a.ValidationCode, &codes, &regUnix); err != nil {
		return domain.OneTimeTokenAccount{}, mapNotFound(err)
	}

	scratch, err := splitCodes(codes)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}
	a.ScratchCodes = scratch
	a.RegistrationDate = time.Unix(regUnix, 0).UTC()
	return a, nil
}

func (r *otpAccountsRepo) UpdateAccount(ctx context.Context, a domain.OneTimeTokenAccount) error {
	// registration_date is immutable after creation and deliberately not in
	// the SET list.
	res, err := r.db.ExecContext(ctx, `
		UPDATE otp_accounts
		SET secret_key = ?, validation_code = ?, scratch_codes = ?
		WHERE username = ?`,
		a.SecretKey, a.ValidationCode, joinCodes(a.ScratchCodes), a.Username,
	)
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

func (r *otpAccountsRepo) DeleteAccount(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_accounts WHERE username = ?`, username)
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
