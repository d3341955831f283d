package components

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/wcx"
)

//wcx:appshell
func ConfigureShell(shell *wcx.AppShell) {
	shell.Title = "wcx example"
	shell.AddMeta("description", "Server-side web components over a websocket session").
		AddStylesheet("/themes/app.css")
}

// HomePage lists every directory user in a <user-box> next to a counter.
//
//wcx:route /
func HomePage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg, ok := wcx.FromContext(r.Context())
		if !ok {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		dir, ok := DirectoryFrom(r.Context())
		if !ok {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		var boxes []templ.Component
		for _, u := range dir.List() {
			box, err := reg.Embed("user-box", map[string]any{"user-id": u.ID, "name": u.Name})
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			boxes = append(boxes, box)
		}
		counter, err := reg.Embed("my-component", map[string]any{"label": "Visits"})
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		_ = wcx.RenderPage(w, r, homeBody(boxes, counter))
	})
}

// CounterPage renders a bare counter; ?label= sets its label.
//
//wcx:route /counter
func CounterPage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		props := map[string]any{}
		if label := r.URL.Query().Get("label"); label != "" {
			props["label"] = label
		}
		_ = wcx.RenderElement(w, r, "my-component", props)
	})
}

func homeBody(boxes []templ.Component, counter templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<main><h1>Users</h1><ul class="users">`); err != nil {
			return err
		}
		for _, box := range boxes {
			if _, err := io.WriteString(w, "<li>"); err != nil {
				return err
			}
			if err := box.Render(ctx, w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "</li>"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</ul>"); err != nil {
			return err
		}
		if err := counter.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>")
		return err
	})
}
