package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vineethbhatalevoor/artvista/internal/ai"
	"github.com/vineethbhatalevoor/artvista/internal/storage"
	"github.com/vineethbhatalevoor/artvista/internal/tracker"
)

type mockAnnotator struct {
	annotations []ai.Annotation
	err         error
	lastImage   string
}

func (m *mockAnnotator) AnnotateImage(ctx context.Context, imageBase64 string) ([]ai.Annotation, error) {
	m.lastImage = imageBase64
	return m.annotations, m.err
}

type mockNarrativeClient struct {
	text string
	err  error
}

func (m *mockNarrativeClient) Narrative(ctx context.Context, title string) (string, error) {
	return m.text, m.err
}

func testApp(t *testing.T) *App {
	t.Helper()

	stories, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("initializing stories storage: %v", err)
	}

	return &App{
		Stories: stories,
		Tracker: tracker.New(tracker.NewFileStore(filepath.Join(t.TempDir(), "activity.json"))),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestVisionAIHandler(t *testing.T) {
	app := testApp(t)
	annotator := &mockAnnotator{annotations: []ai.Annotation{
		{Description: "Cat", Score: 0.95, Type: "label"},
		{Description: "Painting", Score: 0.9, Type: "label"},
		{Description: "Picture frame", Score: 0.8, Type: "object"},
		{Description: "Wall", Score: 0.7, Type: "label"},
		{Description: "Wood", Score: 0.6, Type: "label"},
		{Description: "Table", Score: 0.5, Type: "label"},
	}}
	app.Vision = annotator

	w := postJSON(t, app.VisionAIHandler, `{"image":"data:image/jpeg;base64,aW1hZ2U="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if annotator.lastImage != "aW1hZ2U=" {
		t.Errorf("data URL prefix not stripped: %q", annotator.lastImage)
	}

	var resp struct {
		Labels []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
			Type        string  `json:"type"`
		} `json:"labels"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}

	if len(resp.Labels) != 5 {
		t.Fatalf("expected the top 5 labels, got %d", len(resp.Labels))
	}
	// Painting boosts to 1.0 and overtakes Cat at 0.95.
	if resp.Labels[0].Description != "Painting" || resp.Labels[0].Score != 1.0 {
		t.Errorf("unexpected top label: %+v", resp.Labels[0])
	}
	if resp.Labels[1].Description != "Cat" {
		t.Errorf("expected Cat second, got %+v", resp.Labels[1])
	}
}

func TestVisionAIHandlerNoImage(t *testing.T) {
	app := testApp(t)
	app.Vision = &mockAnnotator{}

	tests := []string{`{}`, `{"image":""}`, `not json`}
	for _, body := range tests {
		w := postJSON(t, app.VisionAIHandler, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "No image provided") {
			t.Errorf("body %q: unexpected error message %s", body, w.Body.String())
		}
	}
}

func TestVisionAIHandlerNotConfigured(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.VisionAIHandler, `{"image":"aW1hZ2U="}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Vision service not configured") {
		t.Errorf("unexpected error message %s", w.Body.String())
	}
}

func TestVisionAIHandlerAuthFailure(t *testing.T) {
	app := testApp(t)
	app.Vision = &mockAnnotator{err: fmt.Errorf("%w: invalid_grant", ai.ErrAuth)}

	w := postJSON(t, app.VisionAIHandler, `{"image":"aW1hZ2U="}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Authentication failed") {
		t.Errorf("expected authentication message, got %s", w.Body.String())
	}
}

func TestVisionAIHandlerUpstreamFailure(t *testing.T) {
	app := testApp(t)
	app.Vision = &mockAnnotator{err: errors.New("Google Vision API returned status 503")}

	w := postJSON(t, app.VisionAIHandler, `{"image":"aW1hZ2U="}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "Authentication failed") {
		t.Errorf("upstream failure must not report as authentication: %s", w.Body.String())
	}
}

func TestVisionAIHandlerArchivesCapture(t *testing.T) {
	app := testApp(t)
	app.Vision = &mockAnnotator{annotations: []ai.Annotation{
		{Description: "Painting", Score: 0.9, Type: "label"},
	}}

	archiveDir := t.TempDir()
	archive, err := storage.NewLocalStorage(archiveDir)
	if err != nil {
		t.Fatalf("initializing archive storage: %v", err)
	}
	app.Archive = archive

	w := postJSON(t, app.VisionAIHandler, `{"image":"aW1hZ2U="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("reading archive dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 archived capture, got %d", len(entries))
	}
}

func TestGeminiHandlerUpstream(t *testing.T) {
	app := testApp(t)
	app.Narrative = &mockNarrativeClient{text: "A celebrated portrait."}

	w := postJSON(t, app.GeminiHandler, `{"title":"Mona Lisa"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if resp["text"] != "A celebrated portrait." {
		t.Errorf("unexpected text %q", resp["text"])
	}
}

func TestGeminiHandlerLocalStoryFallback(t *testing.T) {
	storiesDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(storiesDir, "mona_lisa.txt"), []byte("local story"), 0644); err != nil {
		t.Fatalf("writing story: %v", err)
	}
	stories, err := storage.NewLocalStorage(storiesDir)
	if err != nil {
		t.Fatalf("initializing stories storage: %v", err)
	}

	app := testApp(t)
	app.Stories = stories
	app.Narrative = &mockNarrativeClient{err: errors.New("quota exceeded")}

	w := postJSON(t, app.GeminiHandler, `{"title":"Mona Lisa"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["text"] != "local story" {
		t.Errorf("expected local story, got %q", resp["text"])
	}
}

func TestGeminiHandlerNotFound(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.GeminiHandler, `{"title":"Unknown Piece"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["text"] != "Story not found for this artwork." {
		t.Errorf("unexpected fallback text %q", resp["text"])
	}
}

func TestGeminiHandlerNoTitle(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.GeminiHandler, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No title provided") {
		t.Errorf("unexpected error message %s", w.Body.String())
	}
}

func TestPredictFallbackHandler(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.PredictFallbackHandler, `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if resp["predictedArtwork"] != "Mona Lisa" {
		t.Errorf("unexpected prediction %q", resp["predictedArtwork"])
	}
	if resp["artistStoryAudio"] != "/audios/mona_lisa.mp3" {
		t.Errorf("unexpected audio path %q", resp["artistStoryAudio"])
	}
}

func TestActivityEndpoints(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.StartViewingHandler, `{"item":"Mona Lisa"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("start: expected 204, got %d", w.Code)
	}

	w = postJSON(t, app.StopViewingHandler, ``)
	if w.Code != http.StatusNoContent {
		t.Fatalf("stop: expected 204, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/activity", nil)
	rec := httptest.NewRecorder()
	app.ActivityHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity: expected 200, got %d", rec.Code)
	}

	var snapshot tracker.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshaling snapshot: %v", err)
	}
	if snapshot.Activities["Mona Lisa"].Views != 1 {
		t.Errorf("expected 1 view, got %+v", snapshot.Activities["Mona Lisa"])
	}

	w = postJSON(t, app.ResetActivityHandler, ``)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset: expected 204, got %d", w.Code)
	}
	if got := app.Tracker.Activity(); len(got.Activities) != 0 {
		t.Errorf("expected empty snapshot after reset, got %+v", got)
	}
}

func TestStartViewingHandlerNoItem(t *testing.T) {
	app := testApp(t)

	w := postJSON(t, app.StartViewingHandler, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHomeHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "web", "templates"), 0755); err != nil {
		t.Fatalf("creating template dir: %v", err)
	}
	tmpl := `<html><body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>`
	if err := os.WriteFile(filepath.Join(dir, "web", "templates", "base.html"), []byte(tmpl), 0644); err != nil {
		t.Fatalf("writing template: %v", err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working dir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("changing dir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	HomeHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ArtVista Explorer") {
		t.Errorf("expected rendered title, got %s", w.Body.String())
	}
}

func TestRouterRoutes(t *testing.T) {
	app := testApp(t)
	app.AudioDir = t.TempDir()
	router := NewRouter(app)

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ping")
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /ping, got %d", resp.StatusCode)
	}
}

func TestSortedActivityRows(t *testing.T) {
	snapshot := tracker.EmptySnapshot()
	snapshot.Activities["Mona Lisa"] = tracker.ActivityRecord{TotalSeconds: 30}
	snapshot.Activities["Starry Night"] = tracker.ActivityRecord{TotalSeconds: 45}
	snapshot.Activities["The Scream"] = tracker.ActivityRecord{TotalSeconds: 30}

	rows := sortedActivityRows(snapshot)
	expected := []string{"Starry Night", "Mona Lisa", "The Scream"}
	for i, item := range expected {
		if rows[i].Item != item {
			t.Errorf("position %d: expected %s, got %s", i, item, rows[i].Item)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		sec      int64
		expected string
	}{
		{0, "00:00:00"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{86399, "23:59:59"},
	}

	for _, tt := range tests {
		if got := formatSeconds(tt.sec); got != tt.expected {
			t.Errorf("formatSeconds(%d) = %s, want %s", tt.sec, got, tt.expected)
		}
	}
}
