package util

import (
	"testing"
	"time"

	"tryout_backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() *model.User {
	u := &model.User{
		Name:  "张三",
		Email: "student@example.com",
		Role:  model.Student,
	}
	u.ID = 42
	return u
}

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	assert.NoError(t, err)

	claims, err := ParseJWT(token, testSecret)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.Student, claims.Role)
	assert.Equal(t, "student@example.com", claims.Email)
	assert.Equal(t, "tryout-backend", claims.Issuer)
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	assert.NoError(t, err)

	_, err = ParseJWT(token, "ffffffffffffffffffffffffffffffff")
	assert.Error(t, err)
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, -time.Minute)
	assert.NoError(t, err)

	_, err = ParseJWT(token, testSecret)
	assert.Error(t, err)
}

// 构造 alg=none 的令牌必须被拒掉，不能退回到不验签
func TestParseJWTRejectsUnsignedAlg(t *testing.T) {
	claims := &Claims{
		UserID: 42,
		Role:   model.Student,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tryout-backend",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)

	_, err = ParseJWT(token, testSecret)
	assert.Error(t, err)
}

func TestParseJWTRejectsForeignIssuer(t *testing.T) {
	claims := &Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "some-other-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	assert.NoError(t, err)

	_, err = ParseJWT(token, testSecret)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("17")
	assert.NoError(t, err)
	assert.Equal(t, uint(17), id)

	for _, bad := range []string{"", "0", "-3", "abc", "17abc"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}
