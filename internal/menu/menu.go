package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/orders"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/redisx"
)

var ErrNotFound = errors.New("menu item not found")

type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int       `json:"price_cents"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repo is the catalog store. Single-item reads go through a short-TTL
// redis cache; mutations invalidate it. Redis may be nil, everything
// falls through to Postgres.
type Repo struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

var _ orders.Catalog = (*Repo)(nil)

func (r *Repo) List(ctx context.Context) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price_cents, category, image_url, available, created_at
		FROM menu_items
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.PriceCents, &it.Category,
			&it.ImageURL, &it.Available, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Item, error) {
	if r.Redis != nil {
		key := fmt.Sprintf(redisx.KeyMenuItem, id)
		if s, err := r.Redis.Get(ctx, key).Result(); err == nil {
			var it Item
			if json.Unmarshal([]byte(s), &it) == nil {
				return it, nil
			}
		}
	}

	var it Item
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price_cents, category, image_url, available, created_at
		FROM menu_items WHERE id = $1
	`, id).Scan(&it.ID, &it.Name, &it.Description, &it.PriceCents, &it.Category,
		&it.ImageURL, &it.Available, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}

	if r.Redis != nil {
		if b, err := json.Marshal(it); err == nil {
			key := fmt.Sprintf(redisx.KeyMenuItem, it.ID)
			_ = r.Redis.Set(ctx, key, b, redisx.TTLMenuCache).Err()
		}
	}
	return it, nil
}

// GetItem implements the catalog lookup the order writer consumes.
// A missing item is not an error; Exists reports it.
func (r *Repo) GetItem(ctx context.Context, id string) (orders.CatalogItem, error) {
	it, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return orders.CatalogItem{}, nil
	}
	if err != nil {
		return orders.CatalogItem{}, err
	}
	return orders.CatalogItem{
		Exists:     true,
		Available:  it.Available,
		PriceCents: it.PriceCents,
		Name:       it.Name,
		ImageURL:   it.ImageURL,
	}, nil
}

func (r *Repo) Create(ctx context.Context, it Item) (Item, error) {
	it.ID = uuid.NewString()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO menu_items (id, name, description, price_cents, category, image_url, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, it.ID, it.Name, it.Description, it.PriceCents, it.Category, it.ImageURL, it.Available).
		Scan(&it.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *Repo) Update(ctx context.Context, it Item) (Item, error) {
	err := r.DB.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $1, description = $2, price_cents = $3, category = $4, image_url = $5, available = $6
		WHERE id = $7
		RETURNING created_at
	`, it.Name, it.Description, it.PriceCents, it.Category, it.ImageURL, it.Available, it.ID).
		Scan(&it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	r.invalidate(ctx, it.ID)
	return it, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *Repo) invalidate(ctx context.Context, id string) {
	if r.Redis != nil {
		_ = r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyMenuItem, id)).Err()
	}
}
