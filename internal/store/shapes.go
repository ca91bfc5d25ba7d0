package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Shapes persist as a base row plus exactly one geometry row. The
// geometry table follows shape_type, so a shape can never carry two
// geometries.

func (s *PostgresStore) InsertShape(ctx context.Context, shape Shape) (Shape, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Shape{}, fmt.Errorf("begin insert shape: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO shapes (board_id, shape_type, stroke_width, stroke_color, fill_color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, shape.BoardID, shape.Type, shape.StrokeWidth, shape.StrokeColor, shape.FillColor).Scan(&shape.ID, &shape.CreatedAt)
	if err != nil {
		return Shape{}, fmt.Errorf("insert shape: %w", err)
	}

	if err := insertGeometry(ctx, tx, shape); err != nil {
		return Shape{}, err
	}

	if err := tx.Commit(); err != nil {
		return Shape{}, fmt.Errorf("commit insert shape: %w", err)
	}
	return shape, nil
}

func insertGeometry(ctx context.Context, tx *sql.Tx, shape Shape) error {
	switch shape.Type {
	case ShapeLine:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shape_lines (shape_id, x1, y1, x2, y2)
			VALUES ($1, $2, $3, $4, $5)
		`, shape.ID, shape.Line.X1, shape.Line.Y1, shape.Line.X2, shape.Line.Y2)
		if err != nil {
			return fmt.Errorf("insert line geometry: %w", err)
		}
	case ShapeRect:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shape_rects (shape_id, x, y, width, height)
			VALUES ($1, $2, $3, $4, $5)
		`, shape.ID, shape.Rect.X, shape.Rect.Y, shape.Rect.Width, shape.Rect.Height)
		if err != nil {
			return fmt.Errorf("insert rect geometry: %w", err)
		}
	case ShapeCircle:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shape_circles (shape_id, cx, cy, r)
			VALUES ($1, $2, $3, $4)
		`, shape.ID, shape.Circle.CX, shape.Circle.CY, shape.Circle.R)
		if err != nil {
			return fmt.Errorf("insert circle geometry: %w", err)
		}
	default:
		return fmt.Errorf("insert geometry: unknown shape type %q", shape.Type)
	}
	return nil
}

const shapeQuery = `
	SELECT s.id, s.board_id, s.shape_type, s.stroke_width, s.stroke_color, s.fill_color, s.created_at,
		l.x1, l.y1, l.x2, l.y2,
		r.x, r.y, r.width, r.height,
		c.cx, c.cy, c.r
	FROM shapes s
	LEFT JOIN shape_lines l ON l.shape_id = s.id
	LEFT JOIN shape_rects r ON r.shape_id = s.id
	LEFT JOIN shape_circles c ON c.shape_id = s.id
`

type shapeScanner interface {
	Scan(dest ...any) error
}

func scanShape(row shapeScanner) (Shape, error) {
	var (
		shape          Shape
		x1, y1, x2, y2 sql.NullInt64
		x, y, w, h     sql.NullInt64
		cx, cy         sql.NullInt64
		r              sql.NullFloat64
	)
	err := row.Scan(
		&shape.ID, &shape.BoardID, &shape.Type, &shape.StrokeWidth, &shape.StrokeColor, &shape.FillColor, &shape.CreatedAt,
		&x1, &y1, &x2, &y2,
		&x, &y, &w, &h,
		&cx, &cy, &r,
	)
	if err != nil {
		return Shape{}, err
	}
	switch shape.Type {
	case ShapeLine:
		shape.Line = &LineGeometry{X1: x1.Int64, Y1: y1.Int64, X2: x2.Int64, Y2: y2.Int64}
	case ShapeRect:
		shape.Rect = &RectGeometry{X: x.Int64, Y: y.Int64, Width: w.Int64, Height: h.Int64}
	case ShapeCircle:
		shape.Circle = &CircleGeometry{CX: cx.Int64, CY: cy.Int64, R: r.Float64}
	default:
		return Shape{}, fmt.Errorf("scan shape %d: unknown shape type %q", shape.ID, shape.Type)
	}
	return shape, nil
}

func (s *PostgresStore) GetShape(ctx context.Context, shapeID int64) (Shape, error) {
	return scanShape(s.db.QueryRowContext(ctx, shapeQuery+`WHERE s.id=$1`, shapeID))
}

// ListShapesByBoard returns the board's shapes newest first, matching
// the paint order clients expect.
func (s *PostgresStore) ListShapesByBoard(ctx context.Context, boardID int64) ([]Shape, error) {
	rows, err := s.db.QueryContext(ctx, shapeQuery+`WHERE s.board_id=$1 ORDER BY s.id DESC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	defer rows.Close()

	items := make([]Shape, 0)
	for rows.Next() {
		shape, err := scanShape(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		items = append(items, shape)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shapes: %w", err)
	}
	return items, nil
}

// UpdateShape rewrites the base row and the geometry row. The shape
// type is immutable, so the update refuses a row whose type differs.
func (s *PostgresStore) UpdateShape(ctx context.Context, shape Shape) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin update shape: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE shapes
		SET stroke_width=$3, stroke_color=$4, fill_color=$5
		WHERE id=$1 AND shape_type=$2
	`, shape.ID, shape.Type, shape.StrokeWidth, shape.StrokeColor, shape.FillColor)
	if err != nil {
		return 0, fmt.Errorf("update shape: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update shape rows: %w", err)
	}
	if affected == 0 {
		return 0, nil
	}

	switch shape.Type {
	case ShapeLine:
		_, err = tx.ExecContext(ctx, `
			UPDATE shape_lines SET x1=$2, y1=$3, x2=$4, y2=$5 WHERE shape_id=$1
		`, shape.ID, shape.Line.X1, shape.Line.Y1, shape.Line.X2, shape.Line.Y2)
	case ShapeRect:
		_, err = tx.ExecContext(ctx, `
			UPDATE shape_rects SET x=$2, y=$3, width=$4, height=$5 WHERE shape_id=$1
		`, shape.ID, shape.Rect.X, shape.Rect.Y, shape.Rect.Width, shape.Rect.Height)
	case ShapeCircle:
		_, err = tx.ExecContext(ctx, `
			UPDATE shape_circles SET cx=$2, cy=$3, r=$4 WHERE shape_id=$1
		`, shape.ID, shape.Circle.CX, shape.Circle.CY, shape.Circle.R)
	default:
		return 0, fmt.Errorf("update geometry: unknown shape type %q", shape.Type)
	}
	if err != nil {
		return 0, fmt.Errorf("update geometry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit update shape: %w", err)
	}
	return affected, nil
}

// DeleteShape removes the base row. Geometry rows cascade.
func (s *PostgresStore) DeleteShape(ctx context.Context, shapeID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shapes WHERE id=$1`, shapeID)
	if err != nil {
		return 0, fmt.Errorf("delete shape: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete shape rows: %w", err)
	}
	return affected, nil
}
