package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadRegistration    = errors.New("invalid registration")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleOwner    = "owner"
)

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	LoyaltyPoints int       `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
}

// Principal is what the rest of the system consumes: an authenticated
// identity and its role claim. Nothing downstream re-checks credentials.
type Principal struct {
	ID   string
	Name string
	Role string
}

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, string, error)
}

type Service struct {
	Users    UserStore
	Secret   []byte
	TokenTTL time.Duration
}

func (s *Service) Register(ctx context.Context, name, email, password, role string) (User, error) {
	if email == "" || password == "" {
		return User{}, fmt.Errorf("%w: email and password required", ErrBadRegistration)
	}
	switch role {
	case RoleCustomer, RoleStaff, RoleOwner:
	case "":
		role = RoleCustomer
	default:
		return User{}, fmt.Errorf("%w: unknown role %q", ErrBadRegistration, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.Users.Create(ctx, name, email, string(hash), role)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	u, hash, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return "", User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}
	tok, err := s.IssueToken(u)
	if err != nil {
		return "", User{}, err
	}
	return tok, u, nil
}

func (s *Service) IssueToken(u User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.Name,
		"role": u.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// VerifyToken parses a bearer token into a principal.
func (s *Service) VerifyToken(raw string) (Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	p := Principal{
		ID:   str(claims["sub"]),
		Name: str(claims["name"]),
		Role: str(claims["role"]),
	}
	if p.ID == "" || p.Role == "" {
		return Principal{}, ErrInvalidToken
	}
	return p, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
