package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/vineethbhatalevoor/artvista/internal/ai"
	"github.com/vineethbhatalevoor/artvista/internal/classifier"
	"github.com/vineethbhatalevoor/artvista/internal/describe"
	"github.com/vineethbhatalevoor/artvista/internal/recognition"
	"github.com/vineethbhatalevoor/artvista/internal/storage"
	"github.com/vineethbhatalevoor/artvista/internal/tracker"
)

// topLabelCount caps the label list returned to clients.
const topLabelCount = 5

var dataURLPrefix = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,`)

// App holds the proxy's collaborators.
type App struct {
	Vision    ai.Annotator             // nil when no credentials configured
	Narrative describe.NarrativeClient // nil when no Gemini key configured
	Stories   *storage.LocalStorage
	Archive   *storage.LocalStorage // nil unless capture archiving enabled
	Tracker   *tracker.Tracker
	AudioDir  string
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func HomeHandler(w http.ResponseWriter, r *http.Request) {
	tmplPath := filepath.Join("web", "templates", "base.html")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title   string
		Message string
	}{
		Title:   "ArtVista Explorer",
		Message: "Point your camera at an artwork and let it tell its story.",
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}
}

// VisionAIHandler proxies one captured frame to the vision service and
// returns the art-reweighted top labels.
func (app *App) VisionAIHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeJSONError(w, http.StatusBadRequest, "No image provided")
		return
	}

	imageBase64 := dataURLPrefix.ReplaceAllString(req.Image, "")

	if app.Vision == nil {
		writeJSONError(w, http.StatusInternalServerError, "Vision service not configured")
		return
	}

	annotations, err := app.Vision.AnnotateImage(r.Context(), imageBase64)
	if err != nil {
		if errors.Is(err, ai.ErrAuth) {
			writeJSONError(w, http.StatusInternalServerError, "Authentication failed: "+err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	app.archiveCapture(imageBase64)

	labels := make([]classifier.RankedLabel, 0, len(annotations))
	for _, a := range annotations {
		kind := classifier.KindLabel
		if a.Type == string(classifier.KindObject) {
			kind = classifier.KindObject
		}
		labels = append(labels, classifier.RankedLabel{
			Description: a.Description,
			Score:       a.Score,
			Kind:        kind,
		})
	}

	ranked := recognition.ReweightArtwork(labels)
	if len(ranked) > topLabelCount {
		ranked = ranked[:topLabelCount]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"labels": ranked})
}

// GeminiHandler returns a narrative for an artwork title: generative
// upstream when configured, local story file otherwise, fixed fallback
// text when neither matches.
func (app *App) GeminiHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "No title provided")
		return
	}

	if app.Narrative != nil {
		text, err := app.Narrative.Narrative(r.Context(), req.Title)
		if err == nil && text != "" {
			writeJSON(w, http.StatusOK, map[string]string{"text": text})
			return
		}
		if err != nil {
			log.Printf("[GEMINI] Upstream narrative failed for %q: %v", req.Title, err)
		}
	}

	if app.Stories != nil {
		storyFile := describe.NormalizeTitle(req.Title) + ".txt"
		if data, err := app.Stories.ReadFile(storyFile); err == nil && len(data) > 0 {
			writeJSON(w, http.StatusOK, map[string]string{"text": string(data)})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": "Story not found for this artwork."})
}

// PredictFallbackHandler is the legacy stub endpoint kept for old
// clients that expect a fixed prediction.
func (app *App) PredictFallbackHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"predictedArtwork": "Mona Lisa",
		"artistStoryAudio": "/audios/mona_lisa.mp3",
	})
}

func (app *App) archiveCapture(imageBase64 string) {
	if app.Archive == nil {
		return
	}

	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		log.Printf("[ARCHIVE] Skipping malformed capture: %v", err)
		return
	}

	filename, err := app.Archive.SaveFile(bytes.NewReader(data), storage.FileInfo{
		Filename:    "capture.jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
	})
	if err != nil {
		log.Printf("[ARCHIVE] Failed to save capture: %v", err)
		return
	}
	log.Printf("[ARCHIVE] Saved capture %s", filename)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// sortedActivityRows flattens a snapshot for the admin view, ordered by
// accumulated time descending.
func sortedActivityRows(snapshot tracker.Snapshot) []activityRow {
	rows := make([]activityRow, 0, len(snapshot.Activities))
	for item, record := range snapshot.Activities {
		rows = append(rows, activityRow{
			Item:         item,
			TotalSeconds: record.TotalSeconds,
			Views:        record.Views,
			LastTs:       record.LastTs,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalSeconds != rows[j].TotalSeconds {
			return rows[i].TotalSeconds > rows[j].TotalSeconds
		}
		return rows[i].Item < rows[j].Item
	})
	return rows
}

func formatSeconds(sec int64) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
