package handlers

import (
	"net/http"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/generation"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/middleware"
)

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var in generation.Input
	if err := decodeJSON(w, r, &in); err != nil {
		a.error(w, http.StatusBadRequest, "validation", "invalid payload")
		return
	}
	req, err := generation.Normalize(userID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.RequestID = middleware.RequestIDFromContext(r.Context())

	resp, err := a.Generator.Generate(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, resp)
}
