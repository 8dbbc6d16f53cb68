package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "rifftube"

var ErrInvalidCookie = errors.New("session: invalid cookie")

type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Codec signs sessions into cookie values (HS256) so the browser can carry
// them without being able to change the user they point at.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: empty signing secret")
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

func (c *Codec) Encode(s Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: s.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign cookie: %w", err)
	}
	return signed, nil
}

func (c *Codec) Decode(value string) (Session, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(value, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if cl.ID == "" {
		return Session{}, fmt.Errorf("%w: missing session id", ErrInvalidCookie)
	}

	s := Session{ID: cl.ID, UserID: cl.UserID}
	if cl.IssuedAt != nil {
		s.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		s.ExpiresAt = cl.ExpiresAt.Time
	}
	return s, nil
}
