package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/core/service"
)

// Screen is the machine-readable form of a routed view. Credentials are
// always masked.
type Screen struct {
	View          string `json:"view" yaml:"view"`
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
	State         string `json:"state" yaml:"state"`
	Access        string `json:"access,omitempty" yaml:"access,omitempty"`
	Refresh       string `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	BackendURL    string `json:"backend_url,omitempty" yaml:"backend_url,omitempty"`
}

// NewScreen builds the screen for a view and snapshot.
func NewScreen(view service.View, snap service.Snapshot, backendURL string) Screen {
	s := Screen{
		View:          view.String(),
		Authenticated: view.Authenticated(),
		State:         snap.Session.State().String(),
		BackendURL:    backendURL,
	}
	if view.Authenticated() {
		s.Access = domain.MaskCredential(snap.Session.Access)
		s.Refresh = domain.MaskCredential(snap.Session.Refresh)
	}
	return s
}

// ScreenRenderer draws routed views to a writer. It implements
// service.Renderer.
type ScreenRenderer struct {
	mu         sync.Mutex
	w          io.Writer
	format     Format
	backendURL string
}

// NewScreenRenderer creates a renderer writing in the given format.
func NewScreenRenderer(w io.Writer, format Format, backendURL string) *ScreenRenderer {
	return &ScreenRenderer{w: w, format: format, backendURL: backendURL}
}

// Render writes the screen. Write errors are dropped; the terminal is the
// only consumer.
func (r *ScreenRenderer) Render(view service.View, snap service.Snapshot) {
	_ = r.RenderScreen(NewScreen(view, snap, r.backendURL))
}

// RenderScreen writes one screen.
func (r *ScreenRenderer) RenderScreen(s Screen) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.format != FormatTable && r.format != "" {
		return NewFormatter(r.format).Format(r.w, s)
	}

	switch s.View {
	case service.ViewLoading.String():
		_, err := fmt.Fprintln(r.w, "Loading session...")
		return err
	case service.ViewLogin.String():
		_, err := fmt.Fprintf(r.w, "Not logged in to %s.\n", orDash(s.BackendURL))
		return err
	default:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		t.AddRow("status", "logged in")
		t.AddRow("state", s.State)
		t.AddRow("access", s.Access)
		t.AddRow("refresh", s.Refresh)
		t.AddRow("backend", orDash(s.BackendURL))
		return t.Render(r.w)
	}
}

// WriteFormErrors prints form errors. Table output puts one message per
// line as "field: message", with non-field messages labelled "error".
func WriteFormErrors(w io.Writer, format Format, errs domain.FormErrors) error {
	if errs.Empty() {
		return nil
	}
	if format != FormatTable && format != "" {
		return NewFormatter(format).Format(w, map[string]domain.FormErrors{"errors": errs})
	}

	for _, field := range errs.Fields() {
		label := field
		if field == domain.NonFieldKey {
			label = "error"
		}
		for _, msg := range errs.Messages(field) {
			if _, err := fmt.Fprintf(w, "%s: %s\n", label, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
