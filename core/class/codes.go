package class

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

const (
	ClassCodeLength  = 8
	InviteCodeLength = 6

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// the code widens by codeWidenBy characters every codeWidenEvery collisions
	codeWidenEvery = 3
	codeWidenBy    = 2
)

var (
	codeRetryBase = 10 * time.Millisecond

	// mockable
	randomCodeFunc = randomCode
)

// randomCode returns n characters drawn uniformly from codeAlphabet.
func randomCode(n int) (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// codeWidth returns the code length to use after `collisions` failed attempts.
func codeWidth(base, collisions int) int {
	return base + (collisions/codeWidenEvery)*codeWidenBy
}

// withUniqueCodes calls write until it stops failing with one of the collision errors,
// at most maxAttempts times with exponential backoff between attempts.
// write receives the number of collisions seen so far, to size its codes with codeWidth.
// When every attempt collides, the last collision error is returned.
func withUniqueCodes(ctx context.Context, maxAttempts int, write func(collisions int) error, collisions ...error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(codeRetryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := write(attempt)
		attempt++
		cause := errors.Cause(err)
		for _, c := range collisions {
			if cause == c {
				return retry.RetryableError(err)
			}
		}
		return err
	})
}
