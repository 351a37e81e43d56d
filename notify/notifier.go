// Package notify delivers a finished credential set back to the initiating
// context: a cross-window message from a popup, a redirect or deep-link
// navigation, or (for the server-poll path) nothing - completion is
// discovered on the next bridge poll.
package notify

import (
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Completion payload types, matched by the initiating context's listener.
const (
	TypeSuccess = "OAUTH_SUCCESS"
	TypeError   = "OAUTH_ERROR"
)

// Credentials is the credential set handed back on success. ExpiresAt is
// milliseconds since epoch.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	CompanyID    string `json:"companyId"`
	UserEmail    string `json:"userEmail"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Result is the completion payload, success or error.
type Result struct {
	Type        string       `json:"type"`
	Credentials *Credentials `json:"credentials,omitempty"`
	Error       string       `json:"error,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Success builds a success result.
func Success(c Credentials) Result {
	return Result{Type: TypeSuccess, Credentials: &c}
}

// Failure builds an error result.
func Failure(code, description string) Result {
	return Result{Type: TypeError, Error: code, Description: description}
}

// ExpiresAtMillis converts an absolute expiry to the payload representation.
func ExpiresAtMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// RedirectURL encodes a result into the query string of a return URL. The
// navigation itself is the delivery: the initiating context observes it by
// reloading, so no separate acknowledgement exists on this path.
func RedirectURL(returnURL string, res Result) (string, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return "", errors.Wrapf(err, "[RedirectURL] bad return URL %q", returnURL)
	}

	q := u.Query()
	q.Set("type", res.Type)
	if res.Credentials != nil {
		q.Set("accessToken", res.Credentials.AccessToken)
		if res.Credentials.RefreshToken != "" {
			q.Set("refreshToken", res.Credentials.RefreshToken)
		}
		q.Set("companyId", res.Credentials.CompanyID)
		q.Set("userEmail", res.Credentials.UserEmail)
		q.Set("expiresAt", strconv.FormatInt(res.Credentials.ExpiresAt, 10))
	}
	if res.Error != "" {
		q.Set("error", res.Error)
		q.Set("description", res.Description)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
