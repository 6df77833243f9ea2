package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
)

func TestSanitizeMessageBody(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  hello  ", "hello"},
		{"strips tags", "<script>alert(1)</script>Is this <b>available</b>?", "alert(1)Is this available?"},
		{"keeps newlines and tabs", "line one\n\tline two", "line one\n\tline two"},
		{"normalises crlf", "a\r\nb", "a\nb"},
		{"drops control chars", "bell\x07 and null\x00", "bell and null"},
		{"collapses blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"only whitespace", " \n\t ", ""},
		{"keeps entities as typed", "Tom & Jerry's", "Tom & Jerry's"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeMessageBody(tt.input))
		})
	}
}

func TestSanitizeMessageBody_Truncates(t *testing.T) {
	body := SanitizeMessageBody(strings.Repeat("é", 5000))
	assert.Equal(t, 4000, len([]rune(body)))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "héllo", TruncateString("héllo", 5))
	assert.Equal(t, "hé", TruncateString("héllo", 2))
	assert.Equal(t, "", TruncateString("", 3))
}

func TestSanitizeSearchQuery(t *testing.T) {
	assert.Equal(t, "harbor", SanitizeSearchQuery("  harbor "))
	assert.Len(t, SanitizeSearchQuery(strings.Repeat("a", 500)), 100)
}

func TestEscapeSQLWildcards(t *testing.T) {
	assert.Equal(t, `50\% off \_ today \\`, EscapeSQLWildcards(`50% off _ today \`))
}

func TestTokens(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test_secret_key_12345"}

	token, err := GenerateToken("vend_1", "vendor")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "vend_1", claims.UserID)
	assert.Equal(t, "vendor", claims.Role)
	assert.Equal(t, "vend_1", claims.Subject)

	expired, err := GenerateTokenWithTTL("vend_1", "vendor", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired)
	assert.Error(t, err)

	// Signed with another secret
	config.AppConfig = &config.Config{JWTSecret: "someone_else"}
	_, err = ValidateToken(token)
	assert.Error(t, err)

	// Right secret, wrong issuer
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "vend_1",
		Role:             "vendor",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := foreign.SignedString([]byte("someone_else"))
	require.NoError(t, err)
	_, err = ValidateToken(signed)
	assert.Error(t, err)
}
