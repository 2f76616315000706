package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", HomeHandler)
	r.Get("/ping", PingHandler)

	r.Post("/vision-ai", app.VisionAIHandler)
	r.Post("/gemini", app.GeminiHandler)
	r.Post("/api/predict", app.PredictFallbackHandler)

	r.Get("/api/activity", app.ActivityHandler)
	r.Post("/api/activity/start", app.StartViewingHandler)
	r.Post("/api/activity/stop", app.StopViewingHandler)
	r.Post("/api/activity/reset", app.ResetActivityHandler)
	r.Get("/admin", app.AdminPageHandler)

	fileServer := http.FileServer(http.Dir(app.AudioDir))
	r.Handle("/audios/*", http.StripPrefix("/audios", fileServer))

	return r
}
