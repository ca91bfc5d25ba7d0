package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pinpal/api/internal/store"
)

// newTestServer wires the fake store into a full HTTP handler and
// returns a bearer token for user 42.
func newTestServer(t *testing.T, st *fakeStore) (http.Handler, string) {
	t.Helper()
	if st.getUserByIDFn == nil {
		st.getUserByIDFn = func(ctx context.Context, userID int64) (store.User, error) {
			return store.User{ID: userID, Username: "dana", DisplayName: "Dana"}, nil
		}
	}
	svc := newTestService(st)
	session, err := svc.issueSession(context.Background(), store.User{ID: 42, Username: "dana", DisplayName: "Dana"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return NewHTTPServer(svc, "*").Handler(), session.Token
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	payload := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeStore{})

	rec, payload := doJSON(t, h, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["ok"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestBoardsRequireAuth(t *testing.T) {
	h, _ := newTestServer(t, &fakeStore{})

	rec, payload := doJSON(t, h, http.MethodGet, "/api/boards", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if payload["success"] != false {
		t.Errorf("payload = %v, want success:false", payload)
	}
}

func TestGetBoardRoute(t *testing.T) {
	st := boardStore(store.Board{ID: 7, Name: "Sketches", OwnerID: 42, ConversationID: 9})
	h, token := newTestServer(t, st)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/board/7", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if payload["boardOwner"] != true {
		t.Errorf("boardOwner = %v, want true", payload["boardOwner"])
	}
	board, ok := payload["board"].(map[string]any)
	if !ok || board["name"] != "Sketches" {
		t.Errorf("board = %v", payload["board"])
	}
}

func TestBeginDrawRouteContested(t *testing.T) {
	holderID := int64(9)
	st := &fakeStore{
		getBoardFn: func(ctx context.Context, boardID int64) (store.Board, error) {
			now := time.Now()
			return store.Board{ID: 7, OwnerID: 42, LockedForEditingByID: &holderID, LockedForEditingOn: &now}, nil
		},
		tryLockBoardFn: func(ctx context.Context, boardID, userID int64, now, staleBefore time.Time) (bool, error) {
			return false, nil
		},
	}
	st.getUserByIDFn = func(ctx context.Context, userID int64) (store.User, error) {
		if userID == holderID {
			return store.User{ID: holderID, DisplayName: "Bob"}, nil
		}
		return store.User{ID: userID, Username: "dana", DisplayName: "Dana"}, nil
	}
	h, token := newTestServer(t, st)

	body := `{"shapeType":"LINE","strokeWidth":1,"strokeColor":"#000","fillColor":"#fff","x1":0,"y1":0,"x2":10,"y2":10}`
	rec, payload := doJSON(t, h, http.MethodPost, "/api/board/7/shape/beginDraw", token, body)
	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423, body = %s", rec.Code, rec.Body.String())
	}
	if want := "Board is locked for editing by Bob"; payload["message"] != want {
		t.Errorf("message = %v, want %q", payload["message"], want)
	}
}

func TestBeginDrawRouteValidationEnvelope(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42})
	h, token := newTestServer(t, st)

	body := `{"shapeType":"CIRCLE","strokeWidth":1,"strokeColor":"#000","fillColor":"#fff","cx":5,"cy":5,"r":-2}`
	rec, payload := doJSON(t, h, http.MethodPost, "/api/board/7/shape/beginDraw", token, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
	fields, ok := payload["erroneousFields"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v, want erroneousFields", payload)
	}
	if _, ok := fields["r"]; !ok {
		t.Errorf("erroneousFields = %v, want an entry for r", fields)
	}
}

func TestEraseRoute(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42})
	st.getShapeFn = func(ctx context.Context, shapeID int64) (store.Shape, error) {
		return store.Shape{ID: 3, BoardID: 7, Type: store.ShapeLine, Line: &store.LineGeometry{}}, nil
	}
	h, token := newTestServer(t, st)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/board/7/shape/3/erase", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if payload["success"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestAddEditorRouteMessage(t *testing.T) {
	st := boardStore(store.Board{ID: 7, OwnerID: 42, ConversationID: 9})
	st.getUserByUsernameFn = func(ctx context.Context, username string) (store.User, error) {
		return store.User{ID: 5, Username: username, DisplayName: "Carol"}, nil
	}
	h, token := newTestServer(t, st)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/board/7/addEditor", token, `{"username":"carol"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if want := "Carol was added as an Editor."; payload["message"] != want {
		t.Errorf("message = %v, want %q", payload["message"], want)
	}
}

func TestRegisterRoute(t *testing.T) {
	st := &fakeStore{}
	h, _ := newTestServer(t, st)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/register", "",
		`{"username":"dana","displayName":"Dana","password":"secret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	user, ok := payload["user"].(map[string]any)
	if !ok || user["username"] != "dana" {
		t.Errorf("user = %v", payload["user"])
	}
}

func TestUnknownRoute(t *testing.T) {
	h, token := newTestServer(t, &fakeStore{})

	rec, _ := doJSON(t, h, http.MethodGet, "/api/nope", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
