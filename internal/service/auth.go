// Package service contains application services for accounts and content.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/makerhub/internal/crypto"
	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/limiter"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

const (
	jwtLeeway      = 30 * time.Second
	minPasswordLen = 8
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// RegisterInput is a new account request.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
	Role     string `json:"role"`
}

// ProfileUpdate is a partial profile change; nil fields are kept.
type ProfileUpdate struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

// AuthService defines account and session operations.
type AuthService interface {
	// Register creates a regular user.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// AdminCreateUser creates a user of any role on behalf of an admin.
	AdminCreateUser(ctx context.Context, caller Principal, in RegisterInput) (*model.User, error)
	// Login applies rate limiting per (username, client) and issues a token pair.
	Login(ctx context.Context, username, password, client string) (model.TokenPair, error)
	// Refresh consumes a refresh token and issues a rotated pair.
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	// Logout revokes a refresh token. Unknown tokens are ignored.
	Logout(ctx context.Context, refreshToken string) error
	// Authenticate validates an access token.
	Authenticate(accessToken string) (Principal, error)
	// Me returns the caller's account.
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
	// UpdateMe applies a profile update.
	UpdateMe(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*model.User, error)
}

// AuthConfig holds token issuing parameters.
type AuthConfig struct {
	SignKey    []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	lim    limiter.Limiter
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, lim limiter.Limiter, cfg AuthConfig, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, tokens: tokens, lim: lim, cfg: cfg, log: log, now: time.Now}
}

// Register creates a user with role "user" regardless of the requested role.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Role = model.RoleUser
	return s.create(ctx, in)
}

// AdminCreateUser creates a user; the caller must be an admin.
func (s *AuthServiceImpl) AdminCreateUser(ctx context.Context, caller Principal, in RegisterInput) (*model.User, error) {
	if !caller.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	return s.create(ctx, in)
}

// EnsureAdmin creates the bootstrap admin account unless the username exists.
func (s *AuthServiceImpl) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	u, err := s.create(ctx, RegisterInput{Username: username, Email: email, Password: password, FullName: username, Role: model.RoleAdmin})
	if err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", zap.String("username", u.Username))
	return nil
}

func (s *AuthServiceImpl) create(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := validateRegister(in); err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:        uid,
		Username:  in.Username,
		Email:     in.Email,
		FullName:  in.FullName,
		Bio:       in.Bio,
		Role:      in.Role,
		IsActive:  true,
		PwdHash:   hash,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func validateRegister(in RegisterInput) error {
	if !usernameRe.MatchString(in.Username) {
		return fmt.Errorf("%w: username must be 3-50 letters, digits, '_', '.' or '-'", errs.ErrValidation)
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, minPasswordLen)
	}
	if !validRole(in.Role) {
		return fmt.Errorf("%w: unknown role %q", errs.ErrValidation, in.Role)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", errs.ErrValidation)
	}
	return nil
}

// Login authenticates with rate limiting by (username, client).
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, client string) (model.TokenPair, error) {
	clientHash := limiter.HashClient(client)

	wait, err := s.lim.Allow(ctx, username, clientHash)
	if err != nil {
		return model.TokenPair{}, err
	}
	if wait > 0 {
		return model.TokenPair{}, errs.RateLimited(wait)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.TokenPair{}, err
	}
	if err != nil || !u.IsActive || !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		blocked, ferr := s.lim.Failure(ctx, username, clientHash)
		if ferr != nil {
			s.log.Warn("record login failure", zap.Error(ferr))
		}
		if blocked > 0 {
			return model.TokenPair{}, errs.RateLimited(blocked)
		}
		// unknown user and wrong password are indistinguishable
		return model.TokenPair{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, username, clientHash); err != nil {
		s.log.Warn("reset login limiter", zap.Error(err))
	}
	return s.issuePair(ctx, u)
}

// Refresh rotates the pair: the presented token is consumed and a new one issued.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, errs.ErrUnauthorized
	}
	uid, err := s.tokens.Consume(ctx, pkgcrypto.HashToken(refreshToken), s.now())
	if errors.Is(err, errs.ErrNotFound) {
		return model.TokenPair{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, errs.ErrNotFound) {
		return model.TokenPair{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.TokenPair{}, err
	}
	if !u.IsActive {
		return model.TokenPair{}, errs.ErrUnauthorized
	}
	return s.issuePair(ctx, u)
}

// Logout revokes the refresh token.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, pkgcrypto.HashToken(refreshToken))
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// issuePair creates a signed HS256 access JWT and a stored refresh secret.
func (s *AuthServiceImpl) issuePair(ctx context.Context, u *model.User) (model.TokenPair, error) {
	now := s.now()
	claims := accessClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SignKey)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	plain, hash, err := pkgcrypto.NewRefreshSecret()
	if err != nil {
		return model.TokenPair{}, err
	}
	rec := &model.RefreshToken{Hash: hash, UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(s.cfg.RefreshTTL)}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: plain,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

// Authenticate parses and validates an HS256 access token.
func (s *AuthServiceImpl) Authenticate(accessToken string) (Principal, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims,
		func(*jwt.Token) (any, error) { return s.cfg.SignKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return Principal{UserID: uid, Role: claims.Role}, nil
}

// Me returns the user by id.
func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateMe applies the non-nil fields of upd.
func (s *AuthServiceImpl) UpdateMe(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*model.User, error) {
	return applyProfile(ctx, s.users, userID, upd)
}

func applyProfile(ctx context.Context, users repository.UserRepository, userID uuid.UUID, upd ProfileUpdate) (*model.User, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		if err := validateEmail(*upd.Email); err != nil {
			return nil, err
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if err := users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
