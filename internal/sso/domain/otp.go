package domain

import "time"

// OneTimeTokenAccount is a user's second-factor credential set. SecretKey is
// plaintext only while the account is held in memory by a repository call;
// the backing store only ever sees ciphertext.
type OneTimeTokenAccount struct {
	Username       string
	SecretKey      string  // base32 TOTP shared secret
	ValidationCode int64   // last successfully verified code, replay guard
	ScratchCodes   []int64 // single-use backup codes, independently removable

	// RegistrationDate is immutable after creation and compared at second
	// precision across storage round-trips.
	RegistrationDate time.Time
}

// RemoveScratchCode deletes one matching scratch code and reports whether it
// was present. Remaining codes keep their order.
func (a *OneTimeTokenAccount) RemoveScratchCode(code int64) bool {
	for i, c := range a.ScratchCodes {
		if c == code {
			a.ScratchCodes = append(a.ScratchCodes[:i], a.ScratchCodes[i+1:]...)
			return true
		}
	}
	return false
}
