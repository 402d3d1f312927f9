package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	DB *pgxpool.Pool
}

var _ UserStore = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, name, email, passwordHash, role string) (User, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return User{}, err
	}
	if exists {
		return User{}, ErrEmailTaken
	}

	u := User{ID: uuid.NewString(), Name: name, Email: email, Role: role}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING loyalty_points, created_at
	`, u.ID, u.Name, u.Email, passwordHash, u.Role).Scan(&u.LoyaltyPoints, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (User, string, error) {
	var (
		u    User
		hash string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, loyalty_points, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.LoyaltyPoints, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return User{}, "", err
	}
	return u, hash, nil
}
