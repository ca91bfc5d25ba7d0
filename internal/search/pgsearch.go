package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch matches board and owner names with ILIKE as a fallback when
// Meilisearch is not available.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) SearchBoards(query string, limit int) ([]BoardDocument, error) {
	if strings.TrimSpace(query) == "" {
		return []BoardDocument{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := p.db.QueryContext(context.Background(), `
		SELECT b.id, b.name, u.display_name, b.created_at
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		WHERE NOT b.private AND (b.name ILIKE $1 OR u.display_name ILIKE $1)
		ORDER BY b.id
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("pgsearch query: %w", err)
	}
	defer rows.Close()

	results := make([]BoardDocument, 0)
	for rows.Next() {
		var doc BoardDocument
		var createdAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.OwnerName, &createdAt); err != nil {
			return nil, fmt.Errorf("pgsearch scan: %w", err)
		}
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time.Unix()
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

// LoadAllBoards returns every public board for full reindexing.
func (p *PgSearch) LoadAllBoards(ctx context.Context) ([]BoardDocument, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT b.id, b.name, u.display_name, b.created_at
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		WHERE NOT b.private
	`)
	if err != nil {
		return nil, fmt.Errorf("load boards: %w", err)
	}
	defer rows.Close()

	boards := make([]BoardDocument, 0)
	for rows.Next() {
		var doc BoardDocument
		var createdAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.OwnerName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time.Unix()
		}
		boards = append(boards, doc)
	}
	return boards, rows.Err()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
