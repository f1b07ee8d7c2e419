package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quickcourt/quickcourt/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedUser inserts a user with the given role. The password hash is not a
// valid bcrypt hash; use auth.HashPassword when a test needs to log in.
func SeedUser(t *testing.T, database *db.DB, email, role string) db.User {
	t.Helper()

	user, err := database.Queries.CreateUser(context.Background(), db.CreateUserParams{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "not-a-hash",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return user
}

// SeedFacility inserts an approved facility owned by ownerID.
func SeedFacility(t *testing.T, database *db.DB, ownerID int64, operatingHours, pricePerHour string) db.Facility {
	t.Helper()

	facility, err := database.Queries.CreateFacility(context.Background(), db.CreateFacilityParams{
		OwnerID:        ownerID,
		Name:           "Center Court",
		Sport:          "badminton",
		Location:       "Downtown",
		OperatingHours: operatingHours,
		PricePerHour:   pricePerHour,
		Status:         db.FacilityApproved,
	})
	if err != nil {
		t.Fatalf("insert facility: %v", err)
	}
	return facility
}
