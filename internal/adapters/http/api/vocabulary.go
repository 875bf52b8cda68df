package api

import (
	"net/http"
)

// VocabularyDependencies exposes the categorical label sets.
type VocabularyDependencies interface {
	Vocabulary() map[string][]string
}

// VocabularyHandler serves the accepted categorical labels.
type VocabularyHandler struct {
	deps VocabularyDependencies
}

// NewVocabularyHandler creates a new vocabulary handler.
func NewVocabularyHandler(deps VocabularyDependencies) *VocabularyHandler {
	return &VocabularyHandler{deps: deps}
}

// HandleGetVocabulary handles GET /v1/vocabulary.
func (h *VocabularyHandler) HandleGetVocabulary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Vocabulary())
}
