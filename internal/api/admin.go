package api

import (
	"encoding/json"
	"html/template"
	"net/http"
	"path/filepath"
	"time"
)

type activityRow struct {
	Item         string
	TotalSeconds int64
	Views        int64
	LastTs       time.Time
}

// ActivityHandler returns the persisted activity snapshot as JSON.
func (app *App) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Tracker.Activity())
}

func (app *App) StartViewingHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item string `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Item == "" {
		writeJSONError(w, http.StatusBadRequest, "No item provided")
		return
	}

	app.Tracker.StartViewing(req.Item)
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) StopViewingHandler(w http.ResponseWriter, r *http.Request) {
	app.Tracker.StopViewing()
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) ResetActivityHandler(w http.ResponseWriter, r *http.Request) {
	app.Tracker.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// AdminPageHandler renders the analytics dashboard: per-item viewing
// time bars, the last viewed artwork, and the global aggregate.
func (app *App) AdminPageHandler(w http.ResponseWriter, r *http.Request) {
	tmplPath := filepath.Join("web", "templates", "admin.html")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	snapshot := app.Tracker.Activity()
	rows := sortedActivityRows(snapshot)

	maxSeconds := int64(1)
	for _, row := range rows {
		if row.TotalSeconds > maxSeconds {
			maxSeconds = row.TotalSeconds
		}
	}

	type rowView struct {
		Item    string
		Time    string
		Views   int64
		Percent int64
		LastTs  string
	}

	views := make([]rowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowView{
			Item:    row.Item,
			Time:    formatSeconds(row.TotalSeconds),
			Views:   row.Views,
			Percent: row.TotalSeconds * 100 / maxSeconds,
			LastTs:  row.LastTs.Format("Jan 2, 2006 15:04"),
		})
	}

	data := struct {
		Rows       []rowView
		TotalTime  string
		LastViewed string
		LastTs     string
	}{
		Rows:      views,
		TotalTime: formatSeconds(snapshot.TotalSeconds),
	}
	if snapshot.LastViewed != nil {
		data.LastViewed = snapshot.LastViewed.Item
		data.LastTs = snapshot.LastViewed.Ts.Format("Jan 2, 2006 15:04")
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}
