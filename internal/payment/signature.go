package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the webhook signature header name.
const SignatureHeader = "Gateway-Signature"

// signatureTolerance bounds how old a webhook timestamp may be, protecting
// against replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

var (
	// ErrInvalidSignature is returned when the webhook signature does not
	// verify against the shared secret.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrSignatureExpired is returned when the signed timestamp is outside
	// the tolerance window.
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// SignPayload produces a signature header value for the payload:
// "t=<unix>,v1=<hex hmac-sha256 of "<unix>.<payload>">". Used by tests and
// by the gateway itself.
func SignPayload(secret string, timestamp time.Time, payload []byte) string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a webhook signature header against the raw request
// body. Comparison is constant-time.
func VerifySignature(secret, header string, payload []byte, now time.Time) error {
	var ts string
	var sig string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrSignatureExpired
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}

	return nil
}
