package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/ssokit/internal/sso/domain"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/pkg/cryptox"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	scratchCodeCount     = 5 // backup codes issued per account
	scratchCodeDigits    = 8
	validationCodeDigits = 6
	totpPeriod           = 30
)

// ErrInvalidOTPCode reports a code that is neither the current TOTP value nor
// an unused scratch code, or a replay of the last accepted code.
var ErrInvalidOTPCode = errors.New("invalid one-time code")

// CredentialService is the one-time-token credential repository. The secret
// key crosses the injected cipher boundary on every save and load, so the
// backing store only ever holds ciphertext and plaintext never outlives a
// single call.
//
// Save on an existing username is rejected with store.ErrAlreadyExists
// rather than overwriting; re-enrolment goes through Delete first.
type CredentialService struct {
	Store  store.Store
	Cipher cryptox.CipherExecutor
	Issuer string // issuer name stamped into otpauth:// URLs

	// Now overrides the clock in tests. Nil means time.Now.
	Now func() time.Time
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create issues a fresh TOTP secret, validation code and scratch codes for
// the username. Nothing is persisted; the caller decides whether to Save.
func (s *CredentialService) Create(ctx context.Context, username string) (domain.OneTimeTokenAccount, error) {
	if strings.TrimSpace(username) == "" {
		return domain.OneTimeTokenAccount{}, fmt.Errorf("%w: empty username", ErrInvalidRequest)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: username,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.OneTimeTokenAccount{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	validationCode, err := cryptox.GenerateCode(validationCodeDigits)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}
	scratchCodes, err := cryptox.GenerateCodes(scratchCodeCount, scratchCodeDigits)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}

	return domain.OneTimeTokenAccount{
		Username:         username,
		SecretKey:        key.Secret(),
		ValidationCode:   validationCode,
		ScratchCodes:     scratchCodes,
		RegistrationDate: s.now().UTC().Truncate(time.Second),
	}, nil
}

// Save encrypts the secret and persists a new account record. The returned
// account carries the plaintext secret and the registration date as stored.
func (s *CredentialService) Save(ctx context.Context, username, secretKey string, validationCode int64, scratchCodes []int64) (domain.OneTimeTokenAccount, error) {
	ciphertext, err := s.Cipher.Encode(secretKey)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}

	account := domain.OneTimeTokenAccount{
		Username:         username,
		SecretKey:        ciphertext,
		ValidationCode:   validationCode,
		ScratchCodes:     scratchCodes,
		RegistrationDate: s.now().UTC().Truncate(time.Second),
	}
	if err := s.Store.OTPAccounts().CreateAccount(ctx, account); err != nil {
		return domain.OneTimeTokenAccount{}, err
	}

	slogx.FromContext(ctx).Info("otp account saved", "username", username)
	account.SecretKey = secretKey
	return account, nil
}

// Get returns the fully decrypted, ready-to-verify account, or
// store.ErrNotFound. A cipher failure propagates; no partial record is ever
// returned.
func (s *CredentialService) Get(ctx context.Context, username string) (domain.OneTimeTokenAccount, error) {
	account, err := s.Store.OTPAccounts().GetAccount(ctx, username)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}

	plaintext, err := s.Cipher.Decode(account.SecretKey)
	if err != nil {
		return domain.OneTimeTokenAccount{}, err
	}
	account.SecretKey = plaintext
	return account, nil
}

// Update re-encrypts the (possibly changed) secret and persists the mutable
// fields. Fails with store.ErrNotFound if the account is absent.
func (s *CredentialService) Update(ctx context.Context, account domain.OneTimeTokenAccount) error {
	ciphertext, err := s.Cipher.Encode(account.SecretKey)
	if err != nil {
		return err
	}
	account.SecretKey = ciphertext
	return s.Store.OTPAccounts().UpdateAccount(ctx, account)
}

// Delete removes the account record.
func (s *CredentialService) Delete(ctx context.Context, username string) error {
	return s.Store.OTPAccounts().DeleteAccount(ctx, username)
}

// VerifyCode checks a submitted second-factor code against the account's
// current TOTP value, with unused scratch codes as fallback. A successful
// TOTP match is recorded as the validation code so the identical code cannot
// be replayed within its window; a matched scratch code is removed
// independently of the others.
func (s *CredentialService) VerifyCode(ctx context.Context, username, code string) error {
	log := slogx.FromContext(ctx)

	account, err := s.Get(ctx, username)
	if err != nil {
		return err
	}

	numeric, numErr := strconv.ParseInt(strings.TrimSpace(code), 10, 64)

	if numErr == nil && numeric == account.ValidationCode {
		log.Warn("otp verify: replayed code rejected", "username", username)
		return ErrInvalidOTPCode
	}

	valid, err := totp.ValidateCustom(strings.TrimSpace(code), account.SecretKey, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err == nil && valid {
		if numErr == nil {
			account.ValidationCode = numeric
			if err := s.Update(ctx, account); err != nil {
				return err
			}
		}
		return nil
	}

	if numErr == nil && account.RemoveScratchCode(numeric) {
		if err := s.Update(ctx, account); err != nil {
			return err
		}
		log.Info("otp verify: scratch code consumed", "username", username)
		return nil
	}

	return ErrInvalidOTPCode
}
