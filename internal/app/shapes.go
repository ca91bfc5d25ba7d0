package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"pinpal/api/internal/export"
	"pinpal/api/internal/store"
	"pinpal/api/internal/validate"
)

type ShapeInput struct {
	ShapeType   string   `json:"shapeType"`
	StrokeWidth *float64 `json:"strokeWidth"`
	StrokeColor string   `json:"strokeColor"`
	FillColor   string   `json:"fillColor"`

	X1 *float64 `json:"x1"`
	Y1 *float64 `json:"y1"`
	X2 *float64 `json:"x2"`
	Y2 *float64 `json:"y2"`

	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`

	CX *float64 `json:"cx"`
	CY *float64 `json:"cy"`
	R  *float64 `json:"r"`
}

// BeginDraw places a new shape on the board. The caller must hold, or
// be able to take, the board edit lock. A shape that fails validation
// or insertion releases the lock again so other editors are not stuck
// waiting out the timeout.
func (s *Service) BeginDraw(ctx context.Context, session Session, boardID int64, input ShapeInput) (store.Shape, error) {
	board, err := s.getBoard(ctx, boardID)
	if err != nil {
		return store.Shape{}, err
	}
	allowed, err := s.canEditBoard(ctx, board, session.UserID)
	if err != nil {
		return store.Shape{}, err
	}
	if !allowed {
		return store.Shape{}, notEditorError()
	}

	if err := s.locks.AcquireOrRenew(ctx, board.ID, session.UserID); err != nil {
		return store.Shape{}, err
	}

	shape, err := buildShape(board.ID, input)
	if err != nil {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, err
	}

	created, err := s.store.InsertShape(ctx, shape)
	if err != nil {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, fmt.Errorf("insert shape: %w", err)
	}

	s.snapshotBoard(board)
	return created, nil
}

// EndDraw commits the final geometry of a shape the caller started
// drawing. The lock stays held unless releaseLockOnEndDraw is set.
func (s *Service) EndDraw(ctx context.Context, session Session, boardID, shapeID int64, input ShapeInput) (store.Shape, error) {
	existing, err := s.getShape(ctx, shapeID)
	if err != nil {
		return store.Shape{}, err
	}
	if existing.BoardID != boardID {
		return store.Shape{}, notFoundError("Shape not found.")
	}
	board, err := s.getBoard(ctx, existing.BoardID)
	if err != nil {
		return store.Shape{}, err
	}
	allowed, err := s.canEditBoard(ctx, board, session.UserID)
	if err != nil {
		return store.Shape{}, err
	}
	if !allowed {
		return store.Shape{}, notEditorError()
	}

	if err := s.locks.AcquireOrRenew(ctx, board.ID, session.UserID); err != nil {
		return store.Shape{}, err
	}

	if store.ShapeType(input.ShapeType) != existing.Type {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, notFoundError("Shape not found.")
	}

	shape, err := buildShape(board.ID, input)
	if err != nil {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, err
	}
	shape.ID = existing.ID
	shape.CreatedAt = existing.CreatedAt

	affected, err := s.store.UpdateShape(ctx, shape)
	if err != nil {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, fmt.Errorf("update shape: %w", err)
	}
	if affected == 0 {
		s.releaseLock(ctx, board.ID)
		return store.Shape{}, notFoundError("Shape not found.")
	}

	if s.cfg.ReleaseLockOnEndDraw {
		s.releaseLock(ctx, board.ID)
	}
	s.snapshotBoard(board)
	return shape, nil
}

// Erase deletes a shape and always releases the board lock, as erasing
// ends the caller's drawing gesture.
func (s *Service) Erase(ctx context.Context, session Session, boardID, shapeID int64) error {
	shape, err := s.getShape(ctx, shapeID)
	if err != nil {
		return err
	}
	if shape.BoardID != boardID {
		return notFoundError("Shape not found.")
	}
	board, err := s.getBoard(ctx, shape.BoardID)
	if err != nil {
		return err
	}
	allowed, err := s.canEditBoard(ctx, board, session.UserID)
	if err != nil {
		return err
	}
	if !allowed {
		return notEditorError()
	}

	s.releaseLock(ctx, board.ID)

	if _, err := s.store.DeleteShape(ctx, shape.ID); err != nil {
		return fmt.Errorf("delete shape: %w", err)
	}
	s.snapshotBoard(board)
	return nil
}

func (s *Service) getShape(ctx context.Context, shapeID int64) (store.Shape, error) {
	shape, err := s.store.GetShape(ctx, shapeID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Shape{}, notFoundError("Shape not found.")
	}
	if err != nil {
		return store.Shape{}, fmt.Errorf("load shape: %w", err)
	}
	return shape, nil
}

func (s *Service) releaseLock(ctx context.Context, boardID int64) {
	if err := s.locks.Release(ctx, boardID); err != nil {
		log.Printf("release lock on board %d: %v", boardID, err)
	}
}

func buildShape(boardID int64, input ShapeInput) (store.Shape, error) {
	fields := make(map[string]string)

	shapeType := store.ShapeType(input.ShapeType)
	switch shapeType {
	case store.ShapeLine, store.ShapeRect, store.ShapeCircle:
	default:
		fields["shapeType"] = "Shape type must be one of LINE, RECT or CIRCLE."
	}
	if input.StrokeWidth == nil || !validate.Coordinate(*input.StrokeWidth) {
		fields["strokeWidth"] = "Stroke width must be a non-negative integer."
	}
	if !validate.ColorHexCode(input.StrokeColor) {
		fields["strokeColor"] = "Stroke color must be a hex color code."
	}
	if !validate.ColorHexCode(input.FillColor) {
		fields["fillColor"] = "Fill color must be a hex color code."
	}

	shape := store.Shape{
		BoardID:     boardID,
		Type:        shapeType,
		StrokeColor: input.StrokeColor,
		FillColor:   input.FillColor,
	}
	if input.StrokeWidth != nil && validate.Coordinate(*input.StrokeWidth) {
		shape.StrokeWidth = int64(*input.StrokeWidth)
	}

	switch shapeType {
	case store.ShapeLine:
		x1 := coordinateField(fields, "x1", input.X1)
		y1 := coordinateField(fields, "y1", input.Y1)
		x2 := coordinateField(fields, "x2", input.X2)
		y2 := coordinateField(fields, "y2", input.Y2)
		shape.Line = &store.LineGeometry{X1: x1, Y1: y1, X2: x2, Y2: y2}
	case store.ShapeRect:
		x := coordinateField(fields, "x", input.X)
		y := coordinateField(fields, "y", input.Y)
		width := coordinateField(fields, "width", input.Width)
		height := coordinateField(fields, "height", input.Height)
		shape.Rect = &store.RectGeometry{X: x, Y: y, Width: width, Height: height}
	case store.ShapeCircle:
		cx := coordinateField(fields, "cx", input.CX)
		cy := coordinateField(fields, "cy", input.CY)
		var r float64
		if input.R == nil || !validate.Radius(*input.R) {
			fields["r"] = "Radius must be a non-negative number."
		} else {
			// Radii are stored to one decimal place, truncated.
			r = math.Floor(*input.R*10) / 10
		}
		shape.Circle = &store.CircleGeometry{CX: cx, CY: cy, R: r}
	}

	if len(fields) > 0 {
		return store.Shape{}, validationError(fields)
	}
	return shape, nil
}

func coordinateField(fields map[string]string, name string, v *float64) int64 {
	if v == nil || !validate.Coordinate(*v) {
		fields[name] = "Must be a non-negative integer."
		return 0
	}
	return int64(*v)
}

// snapshotBoard records the current board as an SVG revision. Snapshot
// failures never affect the triggering request.
func (s *Service) snapshotBoard(board store.Board) {
	if s.history == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shapes, err := s.store.ListShapesByBoard(ctx, board.ID)
		if err != nil {
			log.Printf("snapshot board %d: %v", board.ID, err)
			return
		}
		svg, err := export.RenderSVG(board.Name, shapes)
		if err != nil {
			log.Printf("snapshot board %d: %v", board.ID, err)
			return
		}
		if err := s.history.Snapshot(board.ID, svg); err != nil {
			log.Printf("snapshot board %d: %v", board.ID, err)
		}
	}()
}
