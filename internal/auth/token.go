// Package auth signs outbound notification webhooks so receivers can verify
// the sender.
package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// WebhookSigner issues and validates short-lived HS256 tokens for webhook
// deliveries.
type WebhookSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewWebhookSigner builds a signer. A zero ttl defaults to five minutes.
func NewWebhookSigner(secret, issuer string, ttl time.Duration) *WebhookSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WebhookSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Claims describes the webhook token payload.
type Claims struct {
	EventType    string `json:"evt"`
	TicketNumber string `json:"ticket_number"`
	jwt.RegisteredClaims
}

// Sign builds and signs a token for one delivery.
func (s *WebhookSigner) Sign(eventID, eventType, ticketNumber string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("webhook secret not configured")
	}
	issuedAt := s.now()
	claims := &Claims{
		EventType:    eventType,
		TicketNumber: ticketNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        eventID,
			Issuer:    s.issuer,
			Subject:   ticketNumber,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates a token and returns its claims.
func (s *WebhookSigner) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
