package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/storage"
	"github.com/google/uuid"
)

// DecodeCursor parses an opaque list cursor. An empty string means the first page.
func DecodeCursor(cursorStr string) (*storage.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	createdAtPart, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	var createdAt int64
	if _, err := fmt.Sscanf(createdAtPart, "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.Cursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ID:        id,
	}, nil
}

// EncodeCursor renders the keyset position of the last row of a page
func EncodeCursor(cursor *storage.Cursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}
