package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/vineethbhatalevoor/artvista/internal/ai"
	"github.com/vineethbhatalevoor/artvista/internal/api"
	"github.com/vineethbhatalevoor/artvista/internal/database"
	"github.com/vineethbhatalevoor/artvista/internal/storage"
	"github.com/vineethbhatalevoor/artvista/internal/tracker"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	storiesDir := os.Getenv("STORIES_DIR")
	if storiesDir == "" {
		storiesDir = "./stories"
	}

	audioDir := os.Getenv("AUDIO_DIR")
	if audioDir == "" {
		audioDir = "./audios"
	}

	// Database configuration
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var dbConfig database.Config
	dbConfig.Type = dbType

	if dbType == "postgres" {
		dbConfig.Host = os.Getenv("DB_HOST")
		if dbConfig.Host == "" {
			dbConfig.Host = "localhost"
		}

		dbPortStr := os.Getenv("DB_PORT")
		if dbPortStr == "" {
			dbPortStr = "5432"
		}
		dbPort, err := strconv.Atoi(dbPortStr)
		if err != nil {
			log.Fatal("Invalid DB_PORT:", err)
		}
		dbConfig.Port = dbPort

		dbConfig.User = os.Getenv("DB_USER")
		if dbConfig.User == "" {
			dbConfig.User = "artvista"
		}

		dbConfig.Password = os.Getenv("DB_PASSWORD")
		if dbConfig.Password == "" {
			dbConfig.Password = "artvista_dev"
		}

		dbConfig.Name = os.Getenv("DB_NAME")
		if dbConfig.Name == "" {
			dbConfig.Name = "artvista"
		}
	} else {
		dbConfig.SQLitePath = os.Getenv("DB_PATH")
		if dbConfig.SQLitePath == "" {
			dbConfig.SQLitePath = "./artvista.db"
		}
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	stories, err := storage.NewLocalStorage(storiesDir)
	if err != nil {
		log.Fatal("Failed to initialize stories storage:", err)
	}

	app := &api.App{
		Stories:  stories,
		Tracker:  tracker.New(database.NewActivityRepo(db)),
		AudioDir: audioDir,
	}

	credentialsPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if credentialsPath != "" {
		account, err := ai.LoadServiceAccount(credentialsPath)
		if err != nil {
			log.Fatal("Failed to load service account:", err)
		}
		app.Vision = ai.NewGoogleVisionClient(ai.NewServiceAccountTokenSource(account))
		log.Printf("Google Vision service enabled (service account: %s)", credentialsPath)
	} else {
		log.Printf("Google Vision service disabled (set GOOGLE_APPLICATION_CREDENTIALS)")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey != "" {
		app.Narrative = ai.NewGeminiClient(geminiKey)
		log.Printf("Gemini narrative service enabled")
	} else {
		log.Printf("Gemini narrative service disabled (no API key); serving local stories")
	}

	archiveDir := os.Getenv("ARCHIVE_DIR")
	if archiveDir != "" {
		archive, err := storage.NewLocalStorage(archiveDir)
		if err != nil {
			log.Fatal("Failed to initialize archive storage:", err)
		}
		app.Archive = archive
		log.Printf("Capture archive enabled: %s", archiveDir)
	}

	router := api.NewRouter(app)

	log.Printf("Server starting on port %s", port)
	log.Printf("Stories directory: %s", storiesDir)
	log.Printf("Audio directory: %s", audioDir)
	log.Printf("Database type: %s", dbType)
	if dbType == "postgres" {
		log.Printf("Database connection: %s@%s:%d/%s", dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	} else {
		log.Printf("Database path: %s", dbConfig.SQLitePath)
	}

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}
