package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Seed populates the database with initial development data: one active
// starter template exercising every contract rule kind. It is a no-op when
// templates already exist.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM templates").Scan(&count); err != nil {
		return fmt.Errorf("seed check templates: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	contract := `{
		"required": ["BG.MAIN", "CHAR.HOST.PRIMARY"],
		"optional": ["TEXT.TITLE.PRIMARY", "LOGO.SHOW.MAIN"],
		"conditional": {
			"TEXT.EPISODE.NUMBER": {"kind": "role_present", "role": "TEXT.TITLE.PRIMARY"}
		},
		"paired": {
			"GUEST.REACTION.1": ["GUEST.REACTION.2"],
			"GUEST.REACTION.2": ["GUEST.REACTION.1"]
		}
	}`

	layout := `{
		"BG.MAIN": {"x": 0, "y": 0, "w": 1.0, "h": 1.0, "z": 0},
		"CHAR.HOST.PRIMARY": {"x": 0.55, "y": 0.1, "w": 0.4, "h": 0.85, "z": 10},
		"TEXT.TITLE.PRIMARY": {"x": 0.05, "y": 0.12, "w": 0.45, "h": 0.3, "z": 20},
		"TEXT.EPISODE.NUMBER": {"x": 0.05, "y": 0.45, "w": 0.2, "h": 0.1, "z": 20},
		"LOGO.SHOW.MAIN": {"x": 0.05, "y": 0.82, "w": 0.15, "h": 0.12, "z": 30},
		"GUEST.REACTION.1": {"x": 0.3, "y": 0.6, "w": 0.2, "h": 0.3, "z": 15},
		"GUEST.REACTION.2": {"x": 0.52, "y": 0.6, "w": 0.2, "h": 0.3, "z": 15}
	}`

	_, err := db.Exec(`
		INSERT INTO templates (name, version, is_active, contract, layout)
		VALUES ($1, $2, $3, $4, $5)
	`, "episode-standard", 1, true, contract, layout)
	if err != nil {
		return fmt.Errorf("seed insert template: %w", err)
	}

	slog.Info("database seeded with starter template", "template", "episode-standard")
	return nil
}
