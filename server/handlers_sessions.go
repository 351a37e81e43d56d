package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/timetrackhq/bexio-auth/bridge"
	"github.com/timetrackhq/bexio-auth/flow"
	"github.com/timetrackhq/bexio-auth/platform"
)

// SessionCreateHandler starts a flow on behalf of a client that cannot
// receive the callback itself. The response carries the authorization URL to
// open and the session to poll for the outcome.
func (s *Server) SessionCreateHandler() http.HandlerFunc {
	type request struct {
		Platform  string   `json:"platform"`
		Scopes    []string `json:"scopes"`
		ReturnURL string   `json:"returnUrl"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
		if req.Platform == "" {
			req.Platform = platform.PlatformMobile
		}

		initiation, err := s.flows.Initiate(r.Context(), flow.Request{
			Env:       platform.Environment{Platform: req.Platform},
			Scopes:    req.Scopes,
			ReturnURL: req.ReturnURL,
		})
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"authUrl":   initiation.AuthURL,
			"strategy":  initiation.Strategy,
			"sessionId": initiation.SessionID,
		})
	}
}

// SessionPollHandler reports the current status of a relay session. A
// terminal session is handed out exactly once: the response carries the full
// outcome and the session is deleted.
func (s *Server) SessionPollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("sessionID")

		session, err := s.sessions.Get(r.Context(), sessionID)
		switch {
		case errors.Is(err, bridge.ErrExpired):
			writeJSONError(w, http.StatusGone, "session_expired", "the sign-in attempt timed out")
			return
		case errors.Is(err, bridge.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, "not_found", "unknown session")
			return
		case err != nil:
			writeJSONError(w, http.StatusInternalServerError, "internal", "could not read session")
			return
		}

		if session.Terminal() {
			if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal", "could not release session")
				return
			}
		}

		writeJSON(w, http.StatusOK, session)
	}
}

// SessionCancelHandler releases a relay session after a user-initiated
// abort.
func (s *Server) SessionCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.flows.Cancel(r.Context(), r.PathValue("sessionID")); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "internal", "could not cancel session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
