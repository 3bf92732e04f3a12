package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/storage"
)

// HandleListBookmarks handles GET /v1/bookmarks.
// Lists the caller's saved papers newest-first, paginated by keyset cursor.
func (h *Handlers) HandleListBookmarks(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}

	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	limit := queryLimit(r)

	items, err := h.db.ListBookmarks(r.Context(), claims.UserID, cursor, limit)
	if err != nil {
		h.writeInternalError(w, r, "failed to list bookmarks", err)
		return
	}

	hasNext := len(items) > limit
	if hasNext {
		items = items[:limit]
	}

	var nextCursor *string
	if hasNext {
		last := items[len(items)-1]
		c := encodeCursor(storage.Cursor{Ts: last.BookmarkedAt, ID: last.BookmarkID})
		nextCursor = &c
	}

	if items == nil {
		items = []model.BookmarkItem{}
	}
	writeList(w, r, http.StatusOK, items, hasNext, nextCursor, limit)
}

// HandleCreateBookmark handles POST /v1/bookmarks.
func (h *Handlers) HandleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}

	var req model.CreateBookmarkRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.ArxivID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "arxiv_id is required")
		return
	}

	paperID, err := h.db.GetPaperID(r.Context(), req.ArxivID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodePaperNotFound, "paper not found: "+req.ArxivID)
			return
		}
		h.writeInternalError(w, r, "failed to resolve paper", err)
		return
	}

	bm, err := h.db.CreateBookmark(r.Context(), claims.UserID, paperID)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, r, http.StatusConflict, model.ErrCodeAlreadyBookmarked, "paper already bookmarked")
			return
		}
		h.writeInternalError(w, r, "failed to create bookmark", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.CreateBookmarkResponse{
		BookmarkID:   bm.ID,
		BookmarkedAt: bm.CreatedAt,
	})
}

// HandleDeleteBookmark handles DELETE /v1/bookmarks/{bookmark_id}.
// Callers can only delete their own bookmarks.
func (h *Handlers) HandleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}

	id, err := strconv.Atoi(r.PathValue("bookmark_id"))
	if err != nil || id < 1 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid bookmark_id")
		return
	}

	bm, err := h.db.GetBookmark(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "bookmark not found")
			return
		}
		h.writeInternalError(w, r, "failed to load bookmark", err)
		return
	}
	if bm.UserID != claims.UserID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "bookmark belongs to another user")
		return
	}

	if err := h.db.DeleteBookmark(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "bookmark not found")
			return
		}
		h.writeInternalError(w, r, "failed to delete bookmark", err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
