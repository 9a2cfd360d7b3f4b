package state

import (
	"context"
	"testing"

	"github.com/ShayCichocki/huddle/pkg/models"
)

func seedProviders(t *testing.T, db *DB) {
	t.Helper()
	providers := []models.Provider{
		{ID: "p1", Name: "Bloom & Co", Category: "Florist", Rating: 4.9, Active: true},
		{ID: "p2", Name: "Petal Pushers", Category: "florist", Rating: 4.2, Active: true},
		{ID: "p3", Name: "Stem Studio", Category: "florist", Rating: 4.7, Active: true},
		{ID: "p4", Name: "Wilted", Category: "florist", Rating: 5.0, Active: false},
		{ID: "p5", Name: "Daisy Chain", Category: "florist", Rating: 3.1, Active: true},
		{ID: "p6", Name: "Grand Hall", Category: "venue", Rating: 4.5, Active: true},
	}
	for i := range providers {
		if err := db.UpsertProvider(context.Background(), &providers[i]); err != nil {
			t.Fatalf("UpsertProvider(%s) failed: %v", providers[i].Name, err)
		}
	}
}

func TestFindTopProviders(t *testing.T) {
	db := setupTestDB(t)
	seedProviders(t, db)

	tests := []struct {
		name     string
		category string
		limit    int
		want     []string
	}{
		{"top three active florists", "florist", 3, []string{"p1", "p3", "p2"}},
		{"category is case insensitive", "FLORIST", 1, []string{"p1"}},
		{"fewer than limit", "venue", 3, []string{"p6"}},
		{"unknown category", "catering", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindTopProviders(context.Background(), tt.category, tt.limit)
			if err != nil {
				t.Fatalf("FindTopProviders failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d providers, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("provider %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestUpsertProvider_Updates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedProviders(t, db)

	p := &models.Provider{ID: "p4", Name: "Wilted", Category: "florist", Rating: 5.0, Active: true}
	if err := db.UpsertProvider(ctx, p); err != nil {
		t.Fatalf("UpsertProvider failed: %v", err)
	}

	top, err := db.FindTopProviders(ctx, "florist", 1)
	if err != nil {
		t.Fatalf("FindTopProviders failed: %v", err)
	}
	if len(top) != 1 || top[0].ID != "p4" {
		t.Errorf("reactivated provider not ranked first: %+v", top)
	}

	all, err := db.ListProviders(ctx, "")
	if err != nil {
		t.Fatalf("ListProviders failed: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("ListProviders returned %d, want 6", len(all))
	}
}

func TestUpsertProvider_Validation(t *testing.T) {
	db := setupTestDB(t)
	if err := db.UpsertProvider(context.Background(), &models.Provider{Name: "No Category"}); err == nil {
		t.Error("expected error without category")
	}
}
