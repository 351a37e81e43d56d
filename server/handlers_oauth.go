package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/timetrackhq/bexio-auth/flow"
	autherrors "github.com/timetrackhq/bexio-auth/internal/errors"
	"github.com/timetrackhq/bexio-auth/notify"
	"github.com/timetrackhq/bexio-auth/platform"
)

// AuthorizeHandler starts an authorization attempt. Browsers are redirected
// straight to the provider; callers asking for JSON (format=json) get the
// authorization URL back instead, for opening in a popup or system browser.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		plat := q.Get("platform")
		if plat == "" {
			plat = platform.PlatformWeb
		}

		returnURL := q.Get("return_url")
		if returnURL != "" {
			if _, err := url.Parse(returnURL); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", "return_url is not a valid URL")
				return
			}
		}

		initiation, err := s.flows.Initiate(r.Context(), flow.Request{
			Env: platform.Environment{
				Platform:     plat,
				PopupBlocked: q.Get("popup_blocked") == "true",
			},
			Scopes:    strings.Fields(q.Get("scopes")),
			ReturnURL: returnURL,
		})
		if err != nil {
			writeFlowError(w, err)
			return
		}

		if q.Get("format") == "json" {
			writeJSON(w, http.StatusOK, map[string]any{
				"authUrl":   initiation.AuthURL,
				"strategy":  initiation.Strategy,
				"sessionId": initiation.SessionID,
			})
			return
		}

		http.Redirect(w, r, initiation.AuthURL, http.StatusFound)
	}
}

// CallbackHandler receives the provider redirect and hands the outcome to
// the initiating context, picking the delivery mechanism the flow was
// started with.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// FormValue covers both query params and form_post bodies.
		completion, err := s.flows.HandleCallback(r.Context(), flow.Callback{
			Code:             r.FormValue("code"),
			State:            r.FormValue("state"),
			ErrorCode:        r.FormValue("error"),
			ErrorDescription: r.FormValue("error_description"),
		})

		switch completion.Strategy {
		case platform.StrategyPopup:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = s.renderer.RenderPopup(w, completion.Result, originOf(completion.ReturnURL))

		case platform.StrategyFullRedirect, platform.StrategyDeepLink:
			if completion.ReturnURL == "" {
				s.renderPlain(w, completion.Result, err)
				return
			}
			target, redirectErr := notify.RedirectURL(completion.ReturnURL, completion.Result)
			if redirectErr != nil {
				s.renderPlain(w, completion.Result, err)
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)

		default:
			// Server-poll flows and unroutable callbacks end at a plain
			// page; the outcome, if any, travels through the bridge.
			s.renderPlain(w, completion.Result, err)
		}
	}
}

// RefreshHandler trades a refresh token for fresh credentials.
func (s *Server) RefreshHandler() http.HandlerFunc {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required")
			return
		}

		tokenSet, id, err := s.flows.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  tokenSet.AccessToken,
			"refreshToken": tokenSet.RefreshToken,
			"tokenType":    tokenSet.TokenType,
			"scope":        tokenSet.Scope,
			"expiresAt":    notify.ExpiresAtMillis(tokenSet.ExpiresAt),
			"companyId":    id.CompanyID,
			"userEmail":    id.UserEmail,
		})
	}
}

func (s *Server) renderPlain(w http.ResponseWriter, res notify.Result, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if autherrors.IsKind(err, autherrors.KindCsrfMismatch) {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = s.renderer.RenderPlain(w, res)
}

// originOf reduces a return URL to its origin for use as a postMessage
// target; an unparseable or empty URL falls back to the wildcard.
func originOf(returnURL string) string {
	u, err := url.Parse(returnURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "*"
	}
	return u.Scheme + "://" + u.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":       code,
		"description": message,
	})
}

// writeFlowError maps a classified flow error onto an HTTP status and a JSON
// body carrying the error kind and recovery hint.
func writeFlowError(w http.ResponseWriter, err error) {
	var flowErr *autherrors.FlowError
	if !errors.As(err, &flowErr) {
		writeJSONError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}

	status := http.StatusInternalServerError
	switch flowErr.Kind {
	case autherrors.KindProviderDenied, autherrors.KindExchange:
		status = http.StatusUnauthorized
	case autherrors.KindCsrfMismatch:
		status = http.StatusBadRequest
	case autherrors.KindNetwork:
		status = http.StatusBadGateway
	case autherrors.KindSessionExpired:
		status = http.StatusGone
	}

	writeJSON(w, status, map[string]any{
		"error":       string(flowErr.Kind),
		"description": flowErr.UserMessage,
		"recovery":    string(flowErr.Recovery),
	})
}
