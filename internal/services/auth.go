package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jpcarvajal/chatpay-backend/internal/models"
	"github.com/jpcarvajal/chatpay-backend/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const tokenLifetime = 7 * 24 * time.Hour

// AuthService handles registration, login and JWT verification.
type AuthService struct {
	store  storage.Store
	secret []byte
}

func NewAuthService(store storage.Store, secret string) *AuthService {
	return &AuthService{store: store, secret: []byte(secret)}
}

// Register creates a user with a bcrypt-hashed password and a starting
// balance in the default currency.
func (a *AuthService) Register(reg *models.UserRegistration) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:       reg.Username,
		Email:          reg.Email,
		Phone:          CanonicalPhone(reg.Phone),
		HashedPassword: string(hashed),
		Balance:        reg.InitialBalance,
		Currency:       models.DefaultCurrency,
	}
	return a.store.CreateUser(user)
}

// Login verifies the credentials and returns a signed token.
func (a *AuthService) Login(login *models.UserLogin) (string, *models.User, error) {
	user, err := a.store.GetUserByUsernameOrEmail(login.Username)
	if err != nil {
		if err == storage.ErrNotFound {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(login.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (a *AuthService) issueToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a token and returns the user id it carries.
func (a *AuthService) VerifyToken(tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrInvalidToken
	}

	var userID uint
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
