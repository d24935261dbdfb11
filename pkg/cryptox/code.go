package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a cryptographically random numeric code with at most
// the given number of digits (leading zeros collapse, so the value range is
// [0, 10^digits)). Used for OTP validation codes and scratch codes.
func GenerateCode(digits int) (int64, error) {
	if digits <= 0 || digits > 18 {
		return 0, fmt.Errorf("code digits must be in 1..18, got %d", digits)
	}

	limit := big.NewInt(10)
	limit.Exp(limit, big.NewInt(int64(digits)), nil)

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to generate random code: %w", err)
	}
	return n.Int64(), nil
}

// GenerateCodes returns count distinct random numeric codes.
func GenerateCodes(count, digits int) ([]int64, error) {
	codes := make([]int64, 0, count)
	seen := make(map[int64]struct{}, count)
	for len(codes) < count {
		c, err := GenerateCode(digits)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes, nil
}
