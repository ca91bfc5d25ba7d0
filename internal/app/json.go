package app

import (
	"pinpal/api/internal/store"
)

func sessionJSON(session Session) map[string]any {
	return map[string]any{
		"success":      true,
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"username":     session.Username,
		"displayName":  session.DisplayName,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"username":    user.Username,
		"displayName": user.DisplayName,
	}
}

func boardJSON(board store.Board, viewerID int64) map[string]any {
	payload := map[string]any{
		"id":             board.ID,
		"name":           board.Name,
		"ownerId":        board.OwnerID,
		"private":        board.Private,
		"conversationId": board.ConversationID,
		"boardOwner":     board.OwnerID == viewerID,
	}
	if board.LockedForEditingByID != nil {
		payload["lockedForEditingById"] = *board.LockedForEditingByID
	}
	if board.LockedForEditingOn != nil {
		payload["lockedForEditingOn"] = board.LockedForEditingOn.Unix()
	}
	return payload
}

// shapeJSON flattens the geometry fields into the shape object, which
// is how clients submit them on beginDraw/endDraw.
func shapeJSON(shape store.Shape) map[string]any {
	payload := map[string]any{
		"id":          shape.ID,
		"boardId":     shape.BoardID,
		"shapeType":   string(shape.Type),
		"strokeWidth": shape.StrokeWidth,
		"strokeColor": shape.StrokeColor,
		"fillColor":   shape.FillColor,
	}
	switch {
	case shape.Line != nil:
		payload["x1"] = shape.Line.X1
		payload["y1"] = shape.Line.Y1
		payload["x2"] = shape.Line.X2
		payload["y2"] = shape.Line.Y2
	case shape.Rect != nil:
		payload["x"] = shape.Rect.X
		payload["y"] = shape.Rect.Y
		payload["width"] = shape.Rect.Width
		payload["height"] = shape.Rect.Height
	case shape.Circle != nil:
		payload["cx"] = shape.Circle.CX
		payload["cy"] = shape.Circle.CY
		payload["r"] = shape.Circle.R
	}
	return payload
}

func messageJSON(message store.Message) map[string]any {
	return map[string]any{
		"id":             message.ID,
		"conversationId": message.ConversationID,
		"authorId":       message.AuthorID,
		"authorName":     message.AuthorName,
		"text":           message.Text,
		"timestamp":      message.CreatedAt.Unix(),
	}
}
