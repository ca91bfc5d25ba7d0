package search

import (
	"context"
	"fmt"
	"log"
)

const defaultLimit = 20

// Service is the facade that tries Meilisearch first and falls back to
// Postgres ILIKE matching.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

func (s *Service) SearchBoards(ctx context.Context, query string) ([]BoardDocument, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.SearchBoards(query, defaultLimit)
		if err == nil {
			return nonNil(results), nil
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, err := s.pg.SearchBoards(query, defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("board search: %w", err)
	}
	return nonNil(results), nil
}

func (s *Service) IndexBoard(ctx context.Context, doc BoardDocument) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	return s.meili.IndexBoard(doc)
}

func (s *Service) DeleteBoard(ctx context.Context, id int64) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	return s.meili.DeleteBoard(id)
}

// ReindexAllFromPG pushes every public board from Postgres into
// Meilisearch. Called during startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	boards, err := s.pg.LoadAllBoards(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(boards) == 0 {
		return
	}
	if err := s.meili.IndexBoards(boards); err != nil {
		log.Printf("search: reindex boards: %v", err)
	}
}

func nonNil(r []BoardDocument) []BoardDocument {
	if r == nil {
		return []BoardDocument{}
	}
	return r
}
