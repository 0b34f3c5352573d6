// Package store persists named rule bases in a SQLite database and
// reconstructs validated RuleBaseModel instances from them.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/brb-engine/internal/brb"
	"github.com/kartoza/brb-engine/internal/ruletable"
	"github.com/kartoza/brb-engine/internal/vocab"
)

// Store provides access to the rule-base database
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Summary describes a stored rule base without loading its rules.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Attributes  int    `json:"attributes"`
	Rules       int    `json:"rules"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS rulebases (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS attributes (
	rulebase_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (rulebase_id, name)
);
CREATE TABLE IF NOT EXISTS attribute_values (
	rulebase_id TEXT NOT NULL,
	attribute TEXT NOT NULL,
	position INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (rulebase_id, attribute, value)
);
CREATE TABLE IF NOT EXISTS consequents (
	rulebase_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (rulebase_id, value)
);
CREATE TABLE IF NOT EXISTS rules (
	rulebase_id TEXT NOT NULL,
	rule_id INTEGER NOT NULL,
	rule_weight REAL NOT NULL,
	PRIMARY KEY (rulebase_id, rule_id)
);
CREATE TABLE IF NOT EXISTS rule_antecedents (
	rulebase_id TEXT NOT NULL,
	rule_id INTEGER NOT NULL,
	attribute TEXT NOT NULL,
	value TEXT NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY (rulebase_id, rule_id, attribute)
);
CREATE TABLE IF NOT EXISTS rule_beliefs (
	rulebase_id TEXT NOT NULL,
	rule_id INTEGER NOT NULL,
	consequent TEXT NOT NULL,
	degree REAL NOT NULL,
	PRIMARY KEY (rulebase_id, rule_id, consequent)
);
`

// Open opens (or creates) the rule-base database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule-base database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to rule-base database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save validates the vocabulary and rule table against each other (by
// building a model) and persists them as a new rule base. Returns the
// generated id.
func (s *Store) Save(v *vocab.Vocabulary, table *ruletable.Table) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	model, err := v.NewModel()
	if err != nil {
		return "", err
	}
	if err := table.Populate(model); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT INTO rulebases (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, v.Name, v.Description, now, now,
	); err != nil {
		return "", fmt.Errorf("failed to insert rule base: %w", err)
	}

	for i, attr := range v.Attributes {
		if _, err := tx.Exec(
			`INSERT INTO attributes (rulebase_id, position, name) VALUES (?, ?, ?)`,
			id, i, attr.Name,
		); err != nil {
			return "", fmt.Errorf("failed to insert attribute: %w", err)
		}
		for j, value := range attr.Values {
			if _, err := tx.Exec(
				`INSERT INTO attribute_values (rulebase_id, attribute, position, value) VALUES (?, ?, ?, ?)`,
				id, attr.Name, j, value,
			); err != nil {
				return "", fmt.Errorf("failed to insert attribute value: %w", err)
			}
		}
	}
	for i, value := range v.Consequents {
		if _, err := tx.Exec(
			`INSERT INTO consequents (rulebase_id, position, value) VALUES (?, ?, ?)`,
			id, i, value,
		); err != nil {
			return "", fmt.Errorf("failed to insert consequent: %w", err)
		}
	}

	for _, row := range table.Rows {
		if _, err := tx.Exec(
			`INSERT INTO rules (rulebase_id, rule_id, rule_weight) VALUES (?, ?, ?)`,
			id, row.RuleID, row.RuleWeight,
		); err != nil {
			return "", fmt.Errorf("failed to insert rule %d: %w", row.RuleID, err)
		}
		for attr, value := range row.Antecedents {
			if _, err := tx.Exec(
				`INSERT INTO rule_antecedents (rulebase_id, rule_id, attribute, value, weight) VALUES (?, ?, ?, ?, ?)`,
				id, row.RuleID, attr, value, row.Weights[attr],
			); err != nil {
				return "", fmt.Errorf("failed to insert antecedent of rule %d: %w", row.RuleID, err)
			}
		}
		for consequent, degree := range row.Beliefs {
			if _, err := tx.Exec(
				`INSERT INTO rule_beliefs (rulebase_id, rule_id, consequent, degree) VALUES (?, ?, ?, ?)`,
				id, row.RuleID, consequent, degree,
			); err != nil {
				return "", fmt.Errorf("failed to insert belief of rule %d: %w", row.RuleID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit rule base: %w", err)
	}
	return id, nil
}

// List returns all stored rule bases, newest first.
func (s *Store) List() ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT rb.id, rb.name, rb.description, rb.created_at, rb.updated_at,
			(SELECT COUNT(*) FROM attributes a WHERE a.rulebase_id = rb.id),
			(SELECT COUNT(*) FROM rules r WHERE r.rulebase_id = rb.id)
		FROM rulebases rb
		ORDER BY rb.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule bases: %w", err)
	}
	defer rows.Close()

	summaries := []*Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description,
			&sum.CreatedAt, &sum.UpdatedAt, &sum.Attributes, &sum.Rules); err != nil {
			return nil, fmt.Errorf("failed to scan rule base row: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// Get returns the summary of one rule base.
func (s *Store) Get(id string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	err := s.db.QueryRow(`
		SELECT rb.id, rb.name, rb.description, rb.created_at, rb.updated_at,
			(SELECT COUNT(*) FROM attributes a WHERE a.rulebase_id = rb.id),
			(SELECT COUNT(*) FROM rules r WHERE r.rulebase_id = rb.id)
		FROM rulebases rb WHERE rb.id = ?`, id).
		Scan(&sum.ID, &sum.Name, &sum.Description, &sum.CreatedAt, &sum.UpdatedAt,
			&sum.Attributes, &sum.Rules)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown rule base: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule base: %w", err)
	}
	return &sum, nil
}

// LoadVocabulary reconstructs the vocabulary of a stored rule base.
func (s *Store) LoadVocabulary(id string) (*vocab.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadVocabulary(id)
}

func (s *Store) loadVocabulary(id string) (*vocab.Vocabulary, error) {
	v := &vocab.Vocabulary{}
	err := s.db.QueryRow(`SELECT name, description FROM rulebases WHERE id = ?`, id).
		Scan(&v.Name, &v.Description)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown rule base: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule base: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT name FROM attributes WHERE rulebase_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var attr vocab.Attribute
		if err := rows.Scan(&attr.Name); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		v.Attributes = append(v.Attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range v.Attributes {
		valueRows, err := s.db.Query(
			`SELECT value FROM attribute_values WHERE rulebase_id = ? AND attribute = ? ORDER BY position`,
			id, v.Attributes[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load attribute values: %w", err)
		}
		for valueRows.Next() {
			var value string
			if err := valueRows.Scan(&value); err != nil {
				valueRows.Close()
				return nil, fmt.Errorf("failed to scan attribute value: %w", err)
			}
			v.Attributes[i].Values = append(v.Attributes[i].Values, value)
		}
		if err := valueRows.Err(); err != nil {
			valueRows.Close()
			return nil, err
		}
		valueRows.Close()
	}

	consRows, err := s.db.Query(
		`SELECT value FROM consequents WHERE rulebase_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load consequents: %w", err)
	}
	defer consRows.Close()
	for consRows.Next() {
		var value string
		if err := consRows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan consequent: %w", err)
		}
		v.Consequents = append(v.Consequents, value)
	}
	return v, consRows.Err()
}

// LoadTable reconstructs the rule table of a stored rule base.
func (s *Store) LoadTable(id string) (*ruletable.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadTable(id)
}

func (s *Store) loadTable(id string) (*ruletable.Table, error) {
	rows, err := s.db.Query(
		`SELECT rule_id, rule_weight FROM rules WHERE rulebase_id = ? ORDER BY rule_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	table := &ruletable.Table{}
	for rows.Next() {
		row := ruletable.Row{
			Antecedents: make(map[string]string),
			Weights:     make(map[string]float64),
			Beliefs:     make(map[string]float64),
		}
		if err := rows.Scan(&row.RuleID, &row.RuleWeight); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	byID := make(map[int]*ruletable.Row, len(table.Rows))
	for i := range table.Rows {
		byID[table.Rows[i].RuleID] = &table.Rows[i]
	}

	antRows, err := s.db.Query(
		`SELECT rule_id, attribute, value, weight FROM rule_antecedents WHERE rulebase_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load antecedents: %w", err)
	}
	defer antRows.Close()
	for antRows.Next() {
		var ruleID int
		var attr, value string
		var weight float64
		if err := antRows.Scan(&ruleID, &attr, &value, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan antecedent: %w", err)
		}
		if row, ok := byID[ruleID]; ok {
			row.Antecedents[attr] = value
			row.Weights[attr] = weight
		}
	}
	if err := antRows.Err(); err != nil {
		return nil, err
	}

	beliefRows, err := s.db.Query(
		`SELECT rule_id, consequent, degree FROM rule_beliefs WHERE rulebase_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load beliefs: %w", err)
	}
	defer beliefRows.Close()
	for beliefRows.Next() {
		var ruleID int
		var consequent string
		var degree float64
		if err := beliefRows.Scan(&ruleID, &consequent, &degree); err != nil {
			return nil, fmt.Errorf("failed to scan belief: %w", err)
		}
		if row, ok := byID[ruleID]; ok {
			row.Beliefs[consequent] = degree
		}
	}
	return table, beliefRows.Err()
}

// LoadModel reconstructs a validated RuleBaseModel from storage.
func (s *Store) LoadModel(id string) (*brb.RuleBaseModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.loadVocabulary(id)
	if err != nil {
		return nil, err
	}
	table, err := s.loadTable(id)
	if err != nil {
		return nil, err
	}
	model, err := v.NewModel()
	if err != nil {
		return nil, err
	}
	if err := table.Populate(model); err != nil {
		return nil, fmt.Errorf("stored rule base %s is inconsistent: %w", id, err)
	}
	return model, nil
}

// Delete removes a rule base and all its rows.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM rulebases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule base: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("unknown rule base: %s", id)
	}
	for _, table := range []string{"attributes", "attribute_values", "consequents", "rules", "rule_antecedents", "rule_beliefs"} {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE rulebase_id = ?`, table), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

// Close releases resources
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
