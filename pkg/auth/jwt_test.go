package auth

import (
	"errors"
	"testing"
	"time"

	"roombooking/pkg/model"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestService_RoundTrip(t *testing.T) {
	svc := New(testSecret, "roombooking", time.Hour)
	actor := model.Actor{ID: "student-1", Role: model.RoleStudent}

	token, err := svc.GenerateToken(actor)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestService_Rejects(t *testing.T) {
	svc := New(testSecret, "roombooking", time.Hour)
	good, err := svc.GenerateToken(model.Actor{ID: "u1", Role: model.RoleAdmin})
	require.NoError(t, err)

	expired, err := New(testSecret, "roombooking", -time.Minute).GenerateToken(model.Actor{ID: "u1", Role: model.RoleAdmin})
	require.NoError(t, err)

	otherSecret, err := New("ffffffffffffffffffffffffffffffff", "roombooking", time.Hour).GenerateToken(model.Actor{ID: "u1", Role: model.RoleAdmin})
	require.NoError(t, err)

	otherIssuer, err := New(testSecret, "someone-else", time.Hour).GenerateToken(model.Actor{ID: "u1", Role: model.RoleAdmin})
	require.NoError(t, err)

	badRole, err := svc.GenerateToken(model.Actor{ID: "u1", Role: "root"})
	require.NoError(t, err)

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "u1", Role: model.RoleAdmin})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"unknown role": badRole,
		"alg none":     unsigned,
		"truncated":    good[:len(good)-4],
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}
