package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ShayCichocki/huddle/pkg/models"
)

const providerColumns = `id, name, category, rating, description, location, image, active`

// UpsertProvider inserts a provider or replaces the row with the same id.
func (db *DB) UpsertProvider(ctx context.Context, p *models.Provider) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("upsert provider: name and category are required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))

	_, err := db.Exec(ctx, `
		INSERT INTO providers (`+providerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			rating = excluded.rating,
			description = excluded.description,
			location = excluded.location,
			image = excluded.image,
			active = excluded.active
	`, p.ID, p.Name, p.Category, p.Rating, p.Description, p.Location, p.Image, p.Active)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

// ListProviders lists providers by rating, optionally filtered by category.
func (db *DB) ListProviders(ctx context.Context, category string) ([]models.Provider, error) {
	var rows *sql.Rows
	var err error
	if category != "" {
		rows, err = db.Query(ctx, `SELECT `+providerColumns+` FROM providers
			WHERE category = ? ORDER BY rating DESC, name ASC`, strings.ToLower(category))
	} else {
		rows, err = db.Query(ctx, `SELECT `+providerColumns+` FROM providers
			ORDER BY category ASC, rating DESC, name ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return collectProviders(rows)
}

// FindTopProviders returns up to limit active providers in the category,
// highest rated first.
func (db *DB) FindTopProviders(ctx context.Context, category string, limit int) ([]models.Provider, error) {
	rows, err := db.Query(ctx, `SELECT `+providerColumns+` FROM providers
		WHERE category = ? AND active = 1
		ORDER BY rating DESC, name ASC
		LIMIT ?`, strings.ToLower(category), limit)
	if err != nil {
		return nil, fmt.Errorf("find top providers: %w", err)
	}
	return collectProviders(rows)
}

func collectProviders(rows *sql.Rows) ([]models.Provider, error) {
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Rating, &p.Description, &p.Location, &p.Image, &p.Active); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return providers, nil
}
