package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"tutorly/internal/app"
)

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	topics, err := s.app.ListTopics(r.Context(), false)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// handleTopicSubtree serves /api/topics/{slug} and
// /api/topics/{slug}/reviews.
func (s *Server) handleTopicSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	slug, tail, _ := strings.Cut(rest, "/")
	if slug == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch tail {
	case "":
		s.handleTopicBySlug(w, r, slug)
	case "reviews":
		s.handleTopicReviews(w, r, slug)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleTopicBySlug(w http.ResponseWriter, r *http.Request, slug string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	topic, sections, err := s.app.TopicBySlug(r.Context(), slug, false)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": topic, "sections": sections})
}

func (s *Server) handleTopicReviews(w http.ResponseWriter, r *http.Request, slug string) {
	switch r.Method {
	case http.MethodGet:
		reviews, err := s.app.ListReviews(r.Context(), slug)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
	case http.MethodPost:
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var in app.ReviewInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		review, err := s.app.SubmitReview(r.Context(), user, slug, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, review)
	default:
		methodNotAllowed(w)
	}
}
