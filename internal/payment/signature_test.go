package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_RoundTrip(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id": "evt_1"}`)
	now := time.Now()

	header := SignPayload(secret, now, payload)

	require.NoError(t, VerifySignature(secret, header, payload, now))
}

func TestSignature_WrongSecret(t *testing.T) {
	payload := []byte(`{"id": "evt_1"}`)
	now := time.Now()

	header := SignPayload("whsec_test", now, payload)

	err := VerifySignature("whsec_other", header, payload, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignature_TamperedPayload(t *testing.T) {
	secret := "whsec_test"
	now := time.Now()

	header := SignPayload(secret, now, []byte(`{"amount": 100}`))

	err := VerifySignature(secret, header, []byte(`{"amount": 1}`), now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignature_Expired(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)

	header := SignPayload(secret, signedAt, payload)

	err := VerifySignature(secret, header, payload, time.Now())
	assert.ErrorIs(t, err, ErrSignatureExpired)
}

func TestSignature_FutureTimestamp(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	signedAt := time.Now().Add(10 * time.Minute)

	header := SignPayload(secret, signedAt, payload)

	err := VerifySignature(secret, header, payload, time.Now())
	assert.ErrorIs(t, err, ErrSignatureExpired)
}

func TestSignature_WithinTolerance(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-4 * time.Minute)

	header := SignPayload(secret, signedAt, payload)

	assert.NoError(t, VerifySignature(secret, header, payload, time.Now()))
}

func TestSignature_MalformedHeaders(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	now := time.Now()

	headers := []string{
		"",
		"garbage",
		"t=123",
		"v1=abcdef",
		"t=notanumber,v1=abcdef",
	}

	for _, header := range headers {
		assert.ErrorIs(t, VerifySignature(secret, header, payload, now), ErrInvalidSignature, "header %q", header)
	}
}
