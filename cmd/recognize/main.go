package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"time"

	"github.com/vineethbhatalevoor/artvista/internal/classifier"
	"github.com/vineethbhatalevoor/artvista/internal/describe"
	"github.com/vineethbhatalevoor/artvista/internal/narration"
	"github.com/vineethbhatalevoor/artvista/internal/recognition"
	"github.com/vineethbhatalevoor/artvista/internal/storage"
	"github.com/vineethbhatalevoor/artvista/internal/tracker"
)

// logSynthesizer stands in for the platform speech facility: it prints
// the narration text instead of speaking it.
type logSynthesizer struct{}

func (logSynthesizer) Speak(text string, done func()) (func(), error) {
	log.Printf("[SPEECH] %s", text)
	if done != nil {
		go done()
	}
	return func() {}, nil
}

func main() {
	imagePath := flag.String("image", "", "Path to the captured frame (JPEG or PNG)")
	serverURL := flag.String("server", "http://localhost:3000", "Backend proxy base URL")
	modelDir := flag.String("model", "./model", "Local model directory")
	storiesDir := flag.String("stories", "./stories", "Local story assets directory")
	audioDir := flag.String("audio", "./audios", "Local audio assets directory")
	activityPath := flag.String("activity", "./artvista_activity.json", "Activity snapshot file")
	offline := flag.Bool("offline", false, "Skip the remote classifier and narrative service")
	narrate := flag.Bool("narrate", false, "Narrate the description after predicting")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: recognize -image <path> [-offline] [-narrate]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	file, err := os.Open(*imagePath)
	if err != nil {
		log.Fatal("Failed to open image:", err)
	}
	frame, format, err := image.Decode(file)
	file.Close()
	if err != nil {
		log.Fatal("Failed to decode image:", err)
	}
	log.Printf("Loaded %s frame %dx%d", format, frame.Bounds().Dx(), frame.Bounds().Dy())

	local := classifier.NewLocalClassifier(*modelDir)
	if err := local.Load(); err != nil {
		log.Printf("Warning: local model unavailable: %v", err)
	}

	usage := tracker.New(tracker.NewFileStore(*activityPath))
	online := !*offline

	orchestrator := recognition.NewOrchestrator(
		classifier.NewRemoteClassifier(*serverURL),
		local,
		usage,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	prediction, err := orchestrator.Predict(ctx, frame, online)
	if err != nil {
		log.Fatal("Prediction failed:", err)
	}
	defer usage.StopViewing()

	fmt.Printf("Prediction: %s (%.1f%%, via %s classifier)\n",
		prediction.Label, prediction.Score*100, prediction.Source)

	stories, err := storage.NewLocalStorage(*storiesDir)
	if err != nil {
		log.Fatal("Failed to initialize stories storage:", err)
	}

	resolver := describe.NewResolver(describe.NewProxyClient(*serverURL), stories)
	description := resolver.Describe(ctx, prediction.Label, online)
	fmt.Printf("\n%s\n", description)

	if *narrate {
		audio, err := storage.NewLocalStorage(*audioDir)
		if err != nil {
			log.Fatal("Failed to initialize audio storage:", err)
		}

		selector := narration.NewSelector(logSynthesizer{}, narration.NewAssetPlayer(audio))
		handle := selector.Start(prediction.Label, description, online)
		defer handle.Stop()

		if handle.Mode == narration.ModeAudio {
			fmt.Printf("\nNarration asset: %s\n", handle.Asset)
		}
	}
}
