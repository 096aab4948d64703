package crossdevice

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/contractanalyser/authbridge/pkg/guard"
)

// Action is one navigation instruction for the application shell to execute.
type Action struct {
	Type     string `json:"type"` // replace | navigate | hard-navigate
	Location string `json:"location"`
}

// ActionRecorder collects navigation decisions so they can be returned to
// the shell (or asserted on in tests) instead of executed directly.
type ActionRecorder struct {
	Actions []Action
}

func (r *ActionRecorder) Replace(location string) {
	r.Actions = append(r.Actions, Action{Type: "replace", Location: location})
}

func (r *ActionRecorder) Navigate(location string) {
	r.Actions = append(r.Actions, Action{Type: "navigate", Location: location})
}

func (r *ActionRecorder) HardNavigate(location string) {
	r.Actions = append(r.Actions, Action{Type: "hard-navigate", Location: location})
}

// Handler exposes the orchestrator to the application shell. The shell posts
// its current location on every load; the response lists the navigations to
// perform, empty when neither leg triggers.
func Handler(o *Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Post("/location", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		if err := render.DecodeJSON(req.Body, &body); err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]string{"error": "unable to parse body"})
			return
		}

		loc, err := ParseLocation(body.URL)
		if err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]string{"error": "invalid url"})
			return
		}

		recorder := &ActionRecorder{}
		handled := o.HandleLocation(req.Context(), guard.DeviceKey(req), loc, recorder)

		render.JSON(w, req, map[string]any{
			"handled": handled,
			"actions": recorder.Actions,
		})
	})
	return r
}
