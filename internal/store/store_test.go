// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"framepress/internal/database"
	"framepress/internal/models"
	"framepress/internal/roles"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "framepress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "framepress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := testDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Reset goose global state so other packages see a clean slate.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testRegistry builds a registry covering the roles the tests bind.
func testRegistry(t *testing.T) *roles.Registry {
	t.Helper()
	reg, err := roles.Load()
	if err != nil {
		t.Fatalf("load role registry: %v", err)
	}
	return reg
}

// createTestTemplate inserts a template exercising every rule kind and
// registers cleanup.
func createTestTemplate(t *testing.T, db *sql.DB, reg *roles.Registry) *models.Template {
	t.Helper()

	ts := NewTemplateStore(db, reg)
	tmpl, err := ts.Create(&models.Template{
		Name:    "store-test-" + uuid.NewString(),
		Version: 1,
		Contract: models.RoleContract{
			Required: []models.Role{"BG.MAIN", "CHAR.HOST.PRIMARY"},
			Optional: []models.Role{"TEXT.TITLE.PRIMARY"},
			Paired: map[models.Role][]models.Role{
				"GUEST.REACTION.1": {"GUEST.REACTION.2"},
			},
		},
	})
	if err != nil {
		t.Fatalf("create test template: %v", err)
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM templates WHERE id = $1", tmpl.ID)
	})
	return tmpl
}

// createTestComposition inserts a composition for a fresh item and
// registers cleanup (outputs and versions cascade).
func createTestComposition(t *testing.T, db *sql.DB, templateID uuid.UUID) *models.Composition {
	t.Helper()

	cs := NewCompositionStore(db)
	comp, err := cs.Create(uuid.New(), templateID)
	if err != nil {
		t.Fatalf("create test composition: %v", err)
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM compositions WHERE id = $1", comp.ID)
	})
	return comp
}
