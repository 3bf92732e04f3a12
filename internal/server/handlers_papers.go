package server

import (
	"errors"
	"net/http"

	"github.com/ashita-ai/mekiki/internal/model"
	"github.com/ashita-ai/mekiki/internal/storage"
)

// HandleListPapers handles GET /v1/papers.
// Lists relevant papers newest-first with optional category, importance and
// publication-day filters, paginated by an opaque keyset cursor.
func (h *Handlers) HandleListPapers(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryIntPtr(r, "category_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	minImportance, err := queryIntPtr(r, "min_importance")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if minImportance != nil && (*minImportance < 1 || *minImportance > 5) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "min_importance must be between 1 and 5")
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	limit := queryLimit(r)

	items, err := h.db.ListPapers(r.Context(), storage.ListPapersOpts{
		CategoryID:    categoryID,
		MinImportance: minImportance,
		Date:          date,
		Cursor:        cursor,
		Limit:         limit,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to list papers", err)
		return
	}

	hasNext := len(items) > limit
	if hasNext {
		items = items[:limit]
	}

	var nextCursor *string
	if hasNext {
		key, err := h.db.PaperCursorKey(r.Context(), items[len(items)-1].ArxivID)
		if err != nil {
			h.writeInternalError(w, r, "failed to build cursor", err)
			return
		}
		c := encodeCursor(key)
		nextCursor = &c
	}

	if items == nil {
		items = []model.PaperListItem{}
	}
	writeList(w, r, http.StatusOK, items, hasNext, nextCursor, limit)
}

// HandleGetPaper handles GET /v1/papers/{arxiv_id}.
// Returns the full row including anchor scores, the triage verdict, the
// detail review and extracted figures, and marks the paper as viewed.
func (h *Handlers) HandleGetPaper(w http.ResponseWriter, r *http.Request) {
	arxivID := r.PathValue("arxiv_id")

	paper, err := h.db.GetPaperByArxivID(r.Context(), arxivID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodePaperNotFound, "paper not found: "+arxivID)
			return
		}
		h.writeInternalError(w, r, "failed to load paper", err)
		return
	}

	figures, err := h.db.ListFiguresByPaper(r.Context(), paper.ID)
	if err != nil {
		h.writeInternalError(w, r, "failed to load figures", err)
		return
	}
	if figures == nil {
		figures = []model.PaperFigure{}
	}

	detail := model.PaperDetail{Paper: paper, Figures: figures}
	if paper.CategoryID != nil {
		if name, err := h.categoryName(r, *paper.CategoryID); err == nil && name != "" {
			detail.CategoryName = &name
		}
	}

	// Record the view. Best-effort: a failure must not block the response.
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		if err := h.db.RecordPaperView(r.Context(), claims.UserID, paper.ID); err != nil {
			h.logger.Warn("failed to record paper view",
				"arxiv_id", arxivID, "user_id", claims.UserID, "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, detail)
}

// HandleListCategories handles GET /v1/categories.
func (h *Handlers) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	anchors, err := h.db.ListActiveAnchors(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list categories", err)
		return
	}
	if anchors == nil {
		anchors = []model.Anchor{}
	}
	writeJSON(w, r, http.StatusOK, anchors)
}

// categoryName resolves a category id to its anchor name.
func (h *Handlers) categoryName(r *http.Request, categoryID int) (string, error) {
	anchors, err := h.db.ListActiveAnchors(r.Context())
	if err != nil {
		return "", err
	}
	for _, a := range anchors {
		if a.CategoryID == categoryID {
			return a.CategoryName, nil
		}
	}
	return "", nil
}
