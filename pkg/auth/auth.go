package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// passwordCost is the bcrypt cost for admin passwords
var passwordCost = 14

// TokenTTL is how long an admin token stays valid
const TokenTTL = 24 * time.Hour

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	UserID   uint   `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	jwt.RegisteredClaims
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Authenticator signs admin tokens and tenant API keys
type Authenticator struct {
	jwtSecret    []byte
	masterSecret []byte
	now          func() time.Time
}

// New creates an authenticator from the two server secrets
func New(jwtSecret, masterSecret string) *Authenticator {
	return &Authenticator{
		jwtSecret:    []byte(jwtSecret),
		masterSecret: []byte(masterSecret),
		now:          time.Now,
	}
}

// CreateToken creates a new JWT token for an admin
func (a *Authenticator) CreateToken(user database.MasterUser) (string, error) {
	claims := &Claims{
		Username: user.Username,
		UserID:   user.ID,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(a.now().Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TenantID <= 0 {
		return nil, errors.New("token has no tenant")
	}
	return claims, nil
}

func (a *Authenticator) sign(subject string) string {
	h := hmac.New(sha256.New, a.masterSecret)
	h.Write([]byte(subject))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateTenantKey creates a signed API key of the form "<tenantID>.<signature>"
func (a *Authenticator) GenerateTenantKey(tenantID int64) string {
	subject := strconv.FormatInt(tenantID, 10)
	return subject + "." + a.sign(subject)
}

// VerifyTenantKey validates an HMAC-signed API key and returns its tenant
func (a *Authenticator) VerifyTenantKey(key string) (int64, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return 0, errors.New("invalid key format")
	}

	tenantID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || tenantID <= 0 {
		return 0, errors.New("invalid key tenant")
	}

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(parts[1]), []byte(a.sign(parts[0]))) {
		return 0, errors.New("invalid signature")
	}
	return tenantID, nil
}

// UserStore is the admin account storage
type UserStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, user *database.MasterUser) error
}

// EnsureAdminExists creates the first admin account when none exists
func EnsureAdminExists(ctx context.Context, users UserStore, username, password string, tenantID int64, logger *zap.Logger) error {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := users.CreateUser(ctx, &database.MasterUser{
		Username:     username,
		PasswordHash: hash,
		TenantID:     tenantID,
	}); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("default admin user created", zap.String("username", username), zap.Int64("tenant_id", tenantID))
	}
	return nil
}
