package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := NewWebhookSigner("s3cret", "ticket-intake", time.Minute)
	token, err := s.Sign("evt-1", "ticket_created", "T20240101.0001")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ticket_created", claims.EventType)
	assert.Equal(t, "T20240101.0001", claims.TicketNumber)
	assert.Equal(t, "evt-1", claims.ID)
	assert.Equal(t, "ticket-intake", claims.Issuer)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewWebhookSigner("one", "ticket-intake", time.Minute).Sign("e", "t", "n")
	require.NoError(t, err)
	_, err = NewWebhookSigner("two", "ticket-intake", time.Minute).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewWebhookSigner("s3cret", "ticket-intake", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := s.Sign("e", "t", "n")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestSignRequiresSecret(t *testing.T) {
	_, err := NewWebhookSigner("", "ticket-intake", 0).Sign("e", "t", "n")
	assert.Error(t, err)
}
