package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"tutorly/internal/app"
	"tutorly/pkg/domain"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, actor domain.User) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var update app.UserUpdate
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := s.app.AdminUpdateUser(r.Context(), actor, userID, update)
		if err != nil {
			s.audit(r, "api.admin.user.update", "fail", "user_id", actor.ID, "target", userID)
			writeAppError(w, err)
			return
		}
		s.audit(r, "api.admin.user.update", "success", "user_id", actor.ID, "target", userID)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.AdminDeleteUser(r.Context(), actor, userID); err != nil {
			s.audit(r, "api.admin.user.delete", "fail", "user_id", actor.ID, "target", userID)
			writeAppError(w, err)
			return
		}
		s.audit(r, "api.admin.user.delete", "success", "user_id", actor.ID, "target", userID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminTopics(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		topics, err := s.app.ListTopics(r.Context(), true)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
	case http.MethodPost:
		var in app.TopicInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		topic, err := s.app.CreateTopic(r.Context(), in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, topic)
	default:
		methodNotAllowed(w)
	}
}

// handleAdminTopicSubtree serves /api/admin/topics/{id} and
// /api/admin/topics/{id}/sections.
func (s *Server) handleAdminTopicSubtree(w http.ResponseWriter, r *http.Request, _ domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/topics/")
	topicID, tail, _ := strings.Cut(rest, "/")
	if topicID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch tail {
	case "":
		s.handleAdminTopicByID(w, r, topicID)
	case "sections":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var in app.SectionInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		section, err := s.app.CreateSection(r.Context(), topicID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, section)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleAdminTopicByID(w http.ResponseWriter, r *http.Request, topicID string) {
	switch r.Method {
	case http.MethodPut:
		var in app.TopicInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		topic, err := s.app.UpdateTopic(r.Context(), topicID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, topic)
	case http.MethodDelete:
		if err := s.app.DeleteTopic(r.Context(), topicID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// handleAdminSectionSubtree serves /api/admin/sections/{id} and
// /api/admin/sections/{id}/attachment.
func (s *Server) handleAdminSectionSubtree(w http.ResponseWriter, r *http.Request, _ domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/sections/")
	sectionID, tail, _ := strings.Cut(rest, "/")
	if sectionID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch tail {
	case "":
		s.handleAdminSectionByID(w, r, sectionID)
	case "attachment":
		s.handleSectionAttachment(w, r, sectionID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleAdminSectionByID(w http.ResponseWriter, r *http.Request, sectionID string) {
	switch r.Method {
	case http.MethodPut:
		var in app.SectionInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		section, err := s.app.UpdateSection(r.Context(), sectionID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, section)
	case http.MethodDelete:
		if err := s.app.DeleteSection(r.Context(), sectionID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSectionAttachment(w http.ResponseWriter, r *http.Request, sectionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	section, err := s.app.UploadSectionAttachment(r.Context(), sectionID, header.Filename, contentType, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}
