package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/model"
	"gopkg.in/yaml.v3"
)

var ErrViewNameRequired = errors.New("view name is required")

// Store is the durable local state of the client: a localStorage-like key
// value table plus saved task filters.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, "SELECT value FROM local_storage WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM local_storage WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

func (s *Store) SaveView(ctx context.Context, view model.View) (model.View, error) {
	name := strings.TrimSpace(view.Name)
	if name == "" {
		return model.View{}, ErrViewNameRequired
	}

	payload, err := json.Marshal(view.Filter)
	if err != nil {
		return model.View{}, err
	}

	if view.ID == 0 {
		row := s.DB.QueryRowContext(ctx, `
			INSERT INTO views (name, filter_json) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET filter_json = excluded.filter_json, updated_at = CURRENT_TIMESTAMP
			RETURNING id, name, filter_json, created_at, updated_at`,
			name, string(payload))
		return scanView(row)
	}

	row := s.DB.QueryRowContext(ctx, `
		UPDATE views SET name = ?, filter_json = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING id, name, filter_json, created_at, updated_at`,
		name, string(payload), view.ID)
	return scanView(row)
}

func (s *Store) ListViews(ctx context.Context) ([]model.View, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT id, name, filter_json, created_at, updated_at FROM views ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []model.View{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (s *Store) GetViewByName(ctx context.Context, name string) (model.View, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT id, name, filter_json, created_at, updated_at FROM views WHERE name = ?", strings.TrimSpace(name))
	return scanView(row)
}

func (s *Store) DeleteView(ctx context.Context, viewID int64) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM views WHERE id = ?", viewID)
	return err
}

// ExportViews writes every saved view as a YAML document.
func (s *Store) ExportViews(ctx context.Context, w io.Writer) error {
	views, err := s.ListViews(ctx)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(struct {
		Views []model.View `yaml:"views"`
	}{Views: views}); err != nil {
		return fmt.Errorf("encode views: %w", err)
	}
	return encoder.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (model.View, error) {
	var (
		view       model.View
		filterJSON string
	)
	if err := row.Scan(&view.ID, &view.Name, &filterJSON, &view.CreatedAt, &view.UpdatedAt); err != nil {
		return model.View{}, err
	}
	if err := json.Unmarshal([]byte(filterJSON), &view.Filter); err != nil {
		return model.View{}, fmt.Errorf("decode view %q: %w", view.Name, err)
	}
	return view, nil
}
