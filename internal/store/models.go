package store

import "time"

type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	AvatarObject string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Board struct {
	ID             int64
	Name           string
	OwnerID        int64
	Private        bool
	ConversationID int64
	// Edit lock. Both fields are nil when the board is unlocked.
	LockedForEditingByID *int64
	LockedForEditingOn   *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ShapeType string

const (
	ShapeLine   ShapeType = "LINE"
	ShapeRect   ShapeType = "RECT"
	ShapeCircle ShapeType = "CIRCLE"
)

type LineGeometry struct {
	X1 int64
	Y1 int64
	X2 int64
	Y2 int64
}

type RectGeometry struct {
	X      int64
	Y      int64
	Width  int64
	Height int64
}

type CircleGeometry struct {
	CX int64
	CY int64
	// R carries at most one decimal place.
	R float64
}

// Shape is a tagged union. Exactly one geometry pointer is non-nil and
// it matches Type.
type Shape struct {
	ID          int64
	BoardID     int64
	Type        ShapeType
	StrokeWidth int64
	StrokeColor string
	FillColor   string
	Line        *LineGeometry
	Rect        *RectGeometry
	Circle      *CircleGeometry
	CreatedAt   time.Time
}

type Conversation struct {
	ID        int64
	CreatedAt time.Time
}

type Message struct {
	ID             int64
	ConversationID int64
	AuthorID       int64
	// AuthorName is joined from users for responses.
	AuthorName string
	Text       string
	CreatedAt  time.Time
}
