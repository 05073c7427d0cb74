package alert

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Rollout-Signature"
	HeaderTimestamp = "X-Rollout-Timestamp"
)

// ErrInvalidSignature is returned by VerifySignature.
var ErrInvalidSignature = errors.New("invalid alert signature")

// Sign returns the hex HMAC-SHA256 of "<unix timestamp>.<payload>".
func Sign(secret string, timestamp time.Time, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", timestamp.Unix())
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by Sign. A maxAge of zero
// skips the timestamp window check.
func VerifySignature(secret, signature, timestamp string, payload []byte, maxAge time.Duration, now time.Time) error {
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	ts := time.Unix(unix, 0)
	if maxAge > 0 && now.Sub(ts) > maxAge {
		return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}
	expected := Sign(secret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: mismatch", ErrInvalidSignature)
	}
	return nil
}
