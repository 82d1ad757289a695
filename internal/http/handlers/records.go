package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/domain"
)

const (
	defaultRecordLimit = 20
	maxRecordLimit     = 100
)

type recordView struct {
	ID            string  `json:"id"`
	Prompt        string  `json:"prompt"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	Cost          float64 `json:"cost"`
	Quality       string  `json:"quality"`
	AspectRatio   string  `json:"aspectRatio"`
	Status        string  `json:"status"`
	Error         string  `json:"error,omitempty"`
	Favorite      bool    `json:"favorite"`
	DownloadCount int     `json:"downloadCount"`
	ShareCount    int     `json:"shareCount"`
	CreatedAt     string  `json:"createdAt"`
}

func toRecordView(r domain.GenerationRecord) recordView {
	return recordView{
		ID:            r.ID,
		Prompt:        r.Prompt,
		ImageURL:      r.ImageURL,
		Cost:          r.Cost.InexactFloat64(),
		Quality:       string(r.Quality),
		AspectRatio:   string(r.AspectRatio),
		Status:        string(r.Status),
		Error:         r.ErrorMessage,
		Favorite:      r.Favorite,
		DownloadCount: r.DownloadCount,
		ShareCount:    r.ShareCount,
		CreatedAt:     formatTime(r.CreatedAt),
	}
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := defaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "validation", "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecordLimit)
	}
	records, err := a.Records.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]recordView, 0, len(records))
	for _, rec := range records {
		items = append(items, toRecordView(rec))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) IncrementCounter(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	counter, ok := domain.ParseCounter(chi.URLParam(r, "counter"))
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown counter")
		return
	}
	recordID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	if err := a.Records.IncrementCounter(r.Context(), recordID.String(), userID, counter); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
