package notify

import (
	"embed"
	"html/template"
	"io"

	"github.com/pkg/errors"
)

//go:embed templates/*
var templateFiles embed.FS

// defaultMaxAttempts bounds the popup's postMessage retries: 40 attempts at
// 250 ms covers a 10 second window for the opener's listener to appear.
const defaultMaxAttempts = 40

// Renderer renders the completion pages served by the callback endpoint.
type Renderer struct {
	popup *template.Template
	plain *template.Template
}

// NewRenderer parses the embedded completion templates.
func NewRenderer() (*Renderer, error) {
	popup, err := template.ParseFS(templateFiles, "templates/popup_result.html")
	if err != nil {
		return nil, errors.Wrap(err, "[NewRenderer] parse popup template")
	}
	plain, err := template.ParseFS(templateFiles, "templates/plain_result.html")
	if err != nil {
		return nil, errors.Wrap(err, "[NewRenderer] parse plain template")
	}
	return &Renderer{popup: popup, plain: plain}, nil
}

type pageData struct {
	Title        string
	Message      string
	Payload      Result
	TargetOrigin string
	MaxAttempts  int
}

// RenderPopup writes the popup completion page. The page repeatedly posts the
// payload to its opener until acknowledged or the attempt budget runs out,
// stashes the payload in window.name as a fallback channel, then closes
// itself. targetOrigin restricts message delivery; "*" is only appropriate
// when the opener origin is unknown.
func (r *Renderer) RenderPopup(w io.Writer, res Result, targetOrigin string) error {
	if targetOrigin == "" {
		targetOrigin = "*"
	}
	data := pageData{
		Title:        pageTitle(res),
		Message:      pageMessage(res),
		Payload:      res,
		TargetOrigin: targetOrigin,
		MaxAttempts:  defaultMaxAttempts,
	}
	return errors.Wrap(r.popup.Execute(w, data), "[RenderPopup] execute")
}

// RenderPlain writes the minimal completion page shown on the server-poll
// path, where the app discovers the outcome through the bridge.
func (r *Renderer) RenderPlain(w io.Writer, res Result) error {
	data := pageData{
		Title:   pageTitle(res),
		Message: pageMessage(res),
	}
	return errors.Wrap(r.plain.Execute(w, data), "[RenderPlain] execute")
}

func pageTitle(res Result) string {
	if res.Type == TypeSuccess {
		return "Sign-in complete"
	}
	return "Sign-in failed"
}

func pageMessage(res Result) string {
	if res.Type == TypeSuccess {
		return "Sign-in complete. This window will close automatically."
	}
	if res.Description != "" {
		return "Sign-in failed: " + res.Description
	}
	return "Sign-in failed or was cancelled."
}
