package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"merch-service/internal/domain"
	"merch-service/internal/repository"
)

type AuthService struct {
	users     repository.UserRepository
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewAuthService(users repository.UserRepository, secret string, expiresIn time.Duration, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		secret:    []byte(secret),
		expiresIn: expiresIn,
		now:       time.Now,
		log:       log.With().Str("component", "auth").Logger(),
	}
}

// Login checks the password against the stored digest and issues an HS256
// token whose subject is the username.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Resolve maps a bearer token to the user it was issued for. Every failure,
// including a user deleted after issue, is ErrUnauthorized.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	u, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Principal{UserID: u.ID, Username: u.Username}, nil
}

// EnsureUser creates the account when it is missing. An existing account is
// left untouched, password included.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) error {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.users.Create(ctx, &domain.User{Username: username, PasswordHash: string(hash)})
	if errors.Is(err, domain.ErrUserExists) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("username", username).Msg("bootstrap user created")
	return nil
}
