package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pinpal/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/register" {
		var body RegisterInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		user, err := s.service.Register(r.Context(), body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"user":    userJSON(user),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/login" {
		var body LoginInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(session))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        session.UserID,
			"username":      session.Username,
			"displayName":   session.DisplayName,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/boards" {
		boards, err := s.service.ListBoards(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		items := make([]map[string]any, 0, len(boards))
		for _, board := range boards {
			items = append(items, boardJSON(board, session.UserID))
		}
		writeJSON(w, http.StatusOK, map[string]any{"boards": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/boards/search" {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		results, err := s.service.SearchBoards(r.Context(), query)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results, "query": query})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/board/create" {
		var body BoardInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		board, err := s.service.CreateBoard(r.Context(), session, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"board":   boardJSON(board, session.UserID),
		})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "board" {
		boardID, err := parsePathID(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "Board not found.", nil)
			return
		}
		s.handleBoard(w, r, session, boardID, parts[3:])
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "conversation" {
		conversationID, err := parsePathID(parts[2])
		if err != nil {
			writeError(w, http.StatusNotFound, "Conversation not found.", nil)
			return
		}
		s.handleConversation(w, r, session, conversationID, parts[3:])
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "user" {
		s.handleUser(w, r, session, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "Not found.", nil)
}

func (s *HTTPServer) handleBoard(w http.ResponseWriter, r *http.Request, session Session, boardID int64, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			view, err := s.service.GetBoardView(r.Context(), session, boardID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			shapes := make([]map[string]any, 0, len(view.Shapes))
			for _, shape := range view.Shapes {
				shapes = append(shapes, shapeJSON(shape))
			}
			editors := make([]map[string]any, 0, len(view.Editors))
			for _, editor := range view.Editors {
				editors = append(editors, userJSON(editor))
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"board":      boardJSON(view.Board, session.UserID),
				"owner":      userJSON(view.Owner),
				"shapes":     shapes,
				"editors":    editors,
				"boardOwner": view.Board.OwnerID == session.UserID,
			})
			return
		case http.MethodPut:
			var body BoardInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			board, err := s.service.UpdateBoard(r.Context(), session, boardID, body)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"board":   boardJSON(board, session.UserID),
			})
			return
		case http.MethodDelete:
			if err := s.service.DeleteBoard(r.Context(), session, boardID); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
		return
	}

	if len(rest) == 1 && rest[0] == "addEditor" && r.Method == http.MethodPost {
		var body struct {
			Username string `json:"username"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		user, err := s.service.AddEditor(r.Context(), session, boardID, body.Username)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": user.DisplayName + " was added as an Editor.",
			"editor":  userJSON(user),
		})
		return
	}

	if len(rest) == 1 && rest[0] == "removeEditor" && r.Method == http.MethodPost {
		var body struct {
			Username string `json:"username"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		user, err := s.service.RemoveEditor(r.Context(), session, boardID, body.Username)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": user.DisplayName + " was removed as an Editor.",
		})
		return
	}

	if len(rest) >= 1 && rest[0] == "shape" {
		s.handleShape(w, r, session, boardID, rest[1:])
		return
	}

	if len(rest) == 1 && rest[0] == "export.svg" && r.Method == http.MethodGet {
		svg, err := s.service.ExportSVG(r.Context(), session, boardID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(svg)
		return
	}

	if len(rest) == 1 && rest[0] == "export.pdf" && r.Method == http.MethodGet {
		pdf, err := s.service.ExportPDF(r.Context(), session, boardID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"board-%d.pdf\"", boardID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	if len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet {
		revisions, err := s.service.BoardHistory(r.Context(), session, boardID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
		return
	}

	if len(rest) == 2 && rest[0] == "history" && r.Method == http.MethodGet {
		svg, err := s.service.BoardRevision(r.Context(), session, boardID, rest[1])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(svg)
		return
	}

	writeError(w, http.StatusNotFound, "Not found.", nil)
}

func (s *HTTPServer) handleShape(w http.ResponseWriter, r *http.Request, session Session, boardID int64, rest []string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
		return
	}

	if len(rest) == 1 && rest[0] == "beginDraw" {
		var body ShapeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		shape, err := s.service.BeginDraw(r.Context(), session, boardID, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"shape":   shapeJSON(shape),
		})
		return
	}

	if len(rest) == 2 {
		shapeID, err := parsePathID(rest[0])
		if err != nil {
			writeError(w, http.StatusNotFound, "Shape not found.", nil)
			return
		}

		switch rest[1] {
		case "endDraw":
			var body ShapeInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			shape, err := s.service.EndDraw(r.Context(), session, boardID, shapeID, body)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"shape":   shapeJSON(shape),
			})
			return
		case "erase":
			if err := s.service.Erase(r.Context(), session, boardID, shapeID); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "Not found.", nil)
}

func (s *HTTPServer) handleConversation(w http.ResponseWriter, r *http.Request, session Session, conversationID int64, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodGet {
		messages, err := s.service.GetConversation(r.Context(), session, conversationID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		items := make([]map[string]any, 0, len(messages))
		for _, message := range messages {
			items = append(items, messageJSON(message))
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": items})
		return
	}

	if len(rest) == 1 && rest[0] == "send" && r.Method == http.MethodPost {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		message, err := s.service.SendMessage(r.Context(), session, conversationID, body.Text)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": messageJSON(message),
		})
		return
	}

	writeError(w, http.StatusNotFound, "Not found.", nil)
}

func (s *HTTPServer) handleUser(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPut:
			var body ProfileInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			user, err := s.service.UpdateProfile(r.Context(), session, body)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"user":    userJSON(user),
			})
			return
		case http.MethodDelete:
			if err := s.service.DeleteAccount(r.Context(), session); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
		return
	}

	if len(rest) == 1 && rest[0] == "password" && r.Method == http.MethodPost {
		var body ChangePasswordInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), session, body); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if len(rest) == 1 && rest[0] == "avatar" && r.Method == http.MethodPost {
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Could not read request body.", nil)
			return
		}
		if err := s.service.UploadAvatar(r.Context(), session, data, r.Header.Get("Content-Type")); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if len(rest) == 1 && r.Method == http.MethodGet {
		profile, err := s.service.GetProfile(r.Context(), session, rest[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		boards := make([]map[string]any, 0, len(profile.Boards))
		for _, board := range profile.Boards {
			boards = append(boards, boardJSON(board, session.UserID))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":   userJSON(profile.User),
			"boards": boards,
		})
		return
	}

	if len(rest) == 2 && rest[1] == "avatar" && r.Method == http.MethodGet {
		data, contentType, err := s.service.GetAvatar(r.Context(), rest[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeError(w, http.StatusNotFound, "Not found.", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized.", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "Unauthorized.", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "Session lookup failed.", nil)
		return Session{}, false
	}
	return session, true
}

// writeServiceError translates service errors into the response
// envelope. Only persistence failures are logged.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErr.Status, domainErr.Message, domainErr.Fields)
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Not found.", nil)
		return
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		writeError(w, http.StatusUnauthorized, "Unauthorized.", nil)
		return
	}
	log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.", nil)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	response := map[string]any{
		"success": false,
		"message": message,
	}
	if len(fields) > 0 {
		response["erroneousFields"] = fields
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parsePathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
