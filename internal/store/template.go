// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"framepress/internal/binding"
	"framepress/internal/models"
	"framepress/internal/roles"
)

// TemplateStore serves templates as immutable contract values. Every
// load checks the contract against the role registry, so a template
// referencing an unknown role fails here, never at validation time.
type TemplateStore struct {
	db       *sql.DB
	registry *roles.Registry
}

// NewTemplateStore creates a TemplateStore with the given database
// connection and role registry.
func NewTemplateStore(db *sql.DB, registry *roles.Registry) *TemplateStore {
	return &TemplateStore{db: db, registry: registry}
}

const templateColumns = `id, name, version, is_active, contract, layout, created_at`

func (s *TemplateStore) scanTemplate(scanner interface{ Scan(...any) error }) (*models.Template, error) {
	var t models.Template
	var contract []byte
	err := scanner.Scan(
		&t.ID, &t.Name, &t.Version, &t.IsActive, &contract, &t.Layout, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contract, &t.Contract); err != nil {
		return nil, fmt.Errorf("decode contract: %w", err)
	}
	if err := binding.CheckContract(s.registry, &t); err != nil {
		return nil, fmt.Errorf("template configuration: %w", err)
	}
	return &t, nil
}

// Load retrieves a template by id. Returns ErrNotFound if it does not
// exist, or a configuration error if its contract references a role
// unknown to the registry.
func (s *TemplateStore) Load(id uuid.UUID) (*models.Template, error) {
	row := s.db.QueryRow(`
		SELECT `+templateColumns+`
		FROM templates WHERE id = $1
	`, id)
	t, err := s.scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return t, nil
}

// LoadVersion retrieves a specific version of a named template.
func (s *TemplateStore) LoadVersion(name string, version int) (*models.Template, error) {
	row := s.db.QueryRow(`
		SELECT `+templateColumns+`
		FROM templates WHERE name = $1 AND version = $2
	`, name, version)
	t, err := s.scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template version: %w", err)
	}
	return t, nil
}

// List returns all templates ordered by name then version descending.
func (s *TemplateStore) List() ([]models.Template, error) {
	rows, err := s.db.Query(`
		SELECT ` + templateColumns + `
		FROM templates
		ORDER BY name, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		t, err := s.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// Create inserts a new template record. Templates are immutable: a
// revised contract is a new version, never an update in place. The
// contract is checked against the registry before anything is written.
func (s *TemplateStore) Create(t *models.Template) (*models.Template, error) {
	if err := binding.CheckContract(s.registry, t); err != nil {
		return nil, fmt.Errorf("template configuration: %w", err)
	}

	contract, err := json.Marshal(t.Contract)
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}
	layout := t.Layout
	if len(layout) == 0 {
		layout = []byte(`{}`)
	}

	row := s.db.QueryRow(`
		INSERT INTO templates (name, version, is_active, contract, layout)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+templateColumns,
		t.Name, t.Version, t.IsActive, contract, layout,
	)
	created, err := s.scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return created, nil
}
