// Package auth issues and checks sessions. Customers get anonymous sessions;
// vendors sign in with an account and are granted capability through the
// admins allow-list.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gemmy/internal/models"
	"gemmy/internal/store"
)

const (
	RoleAnonymous = "anonymous"
	RoleVendor    = "vendor"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrRefreshExpired     = errors.New("refresh token expired")
)

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller as resolved for one request.
type Identity struct {
	UID   string `json:"uid"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Service struct {
	accounts   store.AccountStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewService(accounts store.AccountStore, secret string, accessTTL, refreshTTL time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		accounts:   accounts,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log.Named("auth"),
		now:        time.Now,
	}
}

func (s *Service) issueAccess(sub, role, email string) (string, error) {
	now := s.now()
	claims := Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies an access token and returns its claims.
func (s *Service) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrUnauthorized)
	}
	return claims, nil
}

// Identify resolves a bearer token. Vendor tokens are checked against the
// allow-list on every call so removing an entry takes effect at once.
func (s *Service) Identify(ctx context.Context, raw string) (Identity, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{UID: claims.Subject, Role: claims.Role, Email: claims.Email}
	if claims.Role != RoleVendor {
		return id, nil
	}

	admin, err := s.accounts.IsAdmin(ctx, claims.Subject)
	if err != nil {
		s.log.Warn("allow-list check failed, treating as non-admin",
			zap.String("uid", claims.Subject), zap.Error(err))
		return id, nil
	}
	id.Admin = admin
	return id, nil
}

// Anonymous starts a customer session with a fresh random subject.
func (s *Service) Anonymous() (Tokens, Identity, error) {
	id := Identity{UID: uuid.NewString(), Role: RoleAnonymous}
	access, err := s.issueAccess(id.UID, id.Role, "")
	if err != nil {
		return Tokens{}, Identity{}, err
	}
	return Tokens{AccessToken: access, ExpiresIn: int64(s.accessTTL.Seconds())}, id, nil
}

// Login checks a vendor's password and issues an access and refresh token.
func (s *Service) Login(ctx context.Context, email, password string) (Tokens, models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return Tokens{}, models.Account{}, ErrInvalidCredentials
	}

	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Tokens{}, models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Tokens{}, models.Account{}, fmt.Errorf("find account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Tokens{}, models.Account{}, ErrInvalidCredentials
	}

	tokens, _, err := s.issueTokens(ctx, account, primitive.NewObjectID())
	if err != nil {
		return Tokens{}, models.Account{}, err
	}
	s.log.Info("vendor signed in", zap.String("uid", account.ID.Hex()))
	return tokens, account, nil
}

// Refresh rotates a refresh token. The old one is revoked and points at its
// replacement.
func (s *Service) Refresh(ctx context.Context, plain string) (Tokens, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return Tokens{}, ErrInvalidRefresh
	}

	stored, err := s.accounts.FindRefreshToken(ctx, HashToken(plain))
	if errors.Is(err, store.ErrNotFound) {
		return Tokens{}, ErrInvalidRefresh
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("find refresh token: %w", err)
	}
	if stored.Revoked {
		return Tokens{}, ErrInvalidRefresh
	}
	if s.now().After(stored.ExpiresAt) {
		if err := s.accounts.RevokeRefreshToken(ctx, stored.ID, nil); err != nil {
			s.log.Warn("revoke expired refresh token failed", zap.Error(err))
		}
		return Tokens{}, ErrRefreshExpired
	}

	account, err := s.accounts.GetAccount(ctx, stored.AccountID)
	if err != nil {
		return Tokens{}, ErrInvalidRefresh
	}

	// Revoke before issuing; only one caller can win the revoke of a token.
	nextID := primitive.NewObjectID()
	err = s.accounts.RevokeRefreshToken(ctx, stored.ID, &nextID)
	if errors.Is(err, store.ErrNotFound) {
		return Tokens{}, ErrInvalidRefresh
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	tokens, _, err := s.issueTokens(ctx, account, nextID)
	if err != nil {
		return Tokens{}, err
	}
	return tokens, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, plain string) error {
	stored, err := s.accounts.FindRefreshToken(ctx, HashToken(strings.TrimSpace(plain)))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidRefresh
	}
	if err != nil {
		return err
	}
	if stored.Revoked {
		return ErrInvalidRefresh
	}
	err = s.accounts.RevokeRefreshToken(ctx, stored.ID, nil)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidRefresh
	}
	return err
}

// CreateAccount registers a vendor account and optionally puts it on the
// allow-list.
func (s *Service) CreateAccount(ctx context.Context, email, name, password string, admin bool) (models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return models.Account{}, fmt.Errorf("email and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.InsertAccount(ctx, &account); err != nil {
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if admin {
		entry := models.Admin{AccountID: account.ID.Hex(), Email: email, CreatedAt: account.CreatedAt}
		if err := s.accounts.AddAdmin(ctx, entry); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return models.Account{}, fmt.Errorf("add admin: %w", err)
		}
	}
	return account, nil
}

func (s *Service) issueTokens(ctx context.Context, account models.Account, id primitive.ObjectID) (Tokens, models.RefreshToken, error) {
	access, err := s.issueAccess(account.ID.Hex(), RoleVendor, account.Email)
	if err != nil {
		return Tokens{}, models.RefreshToken{}, fmt.Errorf("sign access token: %w", err)
	}

	plain, err := generateRefreshString()
	if err != nil {
		return Tokens{}, models.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	refresh := models.RefreshToken{
		ID:        id,
		AccountID: account.ID,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.accounts.InsertRefreshToken(ctx, &refresh); err != nil {
		return Tokens{}, models.RefreshToken{}, fmt.Errorf("store refresh token: %w", err)
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: plain,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, refresh, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
