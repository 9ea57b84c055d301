package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/interfaces"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = 24 * time.Hour

// Operator roles
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

type AuthUsecase struct {
	users     interfaces.UserStore
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthUsecase(users interfaces.UserStore, secret string) *AuthUsecase {
	return &AuthUsecase{
		users:     users,
		jwtSecret: []byte(secret),
		now:       time.Now,
	}
}

// Login checks the operator's password and issues a dashboard token.
func (uc *AuthUsecase) Login(ctx context.Context, username, password string) (string, error) {
	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if user == nil || !user.IsActive {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   user.ID,
		"username":  user.Username,
		"tenant_id": user.TenantID,
		"role":      user.Role,
		"exp":       uc.now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// HashPassword returns the bcrypt hash stored for an operator.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// EnsureOperator creates an admin operator for tenantID if the username is
// not taken yet.
func (uc *AuthUsecase) EnsureOperator(ctx context.Context, username, password, tenantID string) error {
	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	return uc.users.Create(ctx, &entities.User{
		Username:     username,
		PasswordHash: hashed,
		Role:         RoleAdmin,
		TenantID:     tenantID,
		IsActive:     true,
	})
}
