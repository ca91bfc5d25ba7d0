package search

// BoardDocument is the data indexed for a public board.
type BoardDocument struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OwnerName string `json:"ownerName"`
	CreatedAt int64  `json:"createdAt"`
}

// Searcher can look up public boards by name or owner.
type Searcher interface {
	SearchBoards(query string, limit int) ([]BoardDocument, error)
	Healthy() bool
}
