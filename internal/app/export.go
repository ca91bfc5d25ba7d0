package app

import (
	"context"
	"fmt"

	"pinpal/api/internal/export"
	"pinpal/api/internal/history"
)

func (s *Service) SetPDF(r *export.PDFRenderer) { s.pdf = r }

func (s *Service) ExportSVG(ctx context.Context, session Session, boardID int64) ([]byte, error) {
	view, err := s.GetBoardView(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	svg, err := export.RenderSVG(view.Board.Name, view.Shapes)
	if err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return svg, nil
}

func (s *Service) ExportPDF(ctx context.Context, session Session, boardID int64) ([]byte, error) {
	if s.pdf == nil {
		return nil, notFoundError("PDF export is not available.")
	}
	svg, err := s.ExportSVG(ctx, session, boardID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.pdf.Render(ctx, svg)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func (s *Service) BoardHistory(ctx context.Context, session Session, boardID int64) ([]history.Revision, error) {
	if s.history == nil {
		return []history.Revision{}, nil
	}
	if _, err := s.GetBoardView(ctx, session, boardID); err != nil {
		return nil, err
	}
	revisions, err := s.history.Log(boardID)
	if err != nil {
		return nil, fmt.Errorf("board history: %w", err)
	}
	return revisions, nil
}

func (s *Service) BoardRevision(ctx context.Context, session Session, boardID int64, hash string) ([]byte, error) {
	if s.history == nil {
		return nil, notFoundError("Revision not found.")
	}
	if _, err := s.GetBoardView(ctx, session, boardID); err != nil {
		return nil, err
	}
	svg, err := s.history.Show(boardID, hash)
	if err != nil {
		return nil, notFoundError("Revision not found.")
	}
	return svg, nil
}
