// Package main provides a CLI for exercising the engine against a real
// Spotify account.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/pacebox/pacebox/internal/app/ranking"
	"github.com/pacebox/pacebox/internal/app/session"
	"github.com/pacebox/pacebox/internal/infra/logger"
)

var (
	app   = kingpin.New("pacecli", "Tempo-matched recommendation CLI")
	token = app.Flag("token", "Spotify access token").Envar("SPOTIFY_ACCESS_TOKEN").Required().String()

	// profile command
	profileCmd = app.Command("profile", "Show the listening profile")

	// recommend command
	recommendCmd = app.Command("recommend", "Rank saved tracks against a target BPM")
	recommendBPM = recommendCmd.Arg("bpm", "Target BPM").Required().String()
	pages        = recommendCmd.Flag("pages", "Number of pages to print").Default("1").Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Keep engine logging out of the CLI output.
	if err := logger.Init(logger.Config{Output: "stderr", Level: "error"}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	manager := session.New(session.Config{})

	manager.BeginLogin()
	if err := manager.CompleteLogin(ctx, *token); err != nil {
		fmt.Printf("Login error: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case profileCmd.FullCommand():
		showProfile(manager)
	case recommendCmd.FullCommand():
		recommend(ctx, manager, *recommendBPM, *pages)
	}
}

func showProfile(manager *session.Manager) {
	profile := manager.Profile()
	if profile == nil {
		fmt.Println("No profile loaded.")
		os.Exit(1)
	}

	fmt.Println("Top Tracks:")
	for i, t := range profile.TopTracks {
		fmt.Printf("  %2d. %s by %s\n", i+1, t.Name, t.ArtistLine())
	}
	fmt.Println("")
	fmt.Println("Top Artists:")
	for i, a := range profile.TopArtists {
		fmt.Printf("  %2d. %s\n", i+1, a.Name)
	}
	fmt.Println("")
	fmt.Printf("Average tempo of top tracks: %d BPM\n", profile.AverageTempo)
}

func recommend(ctx context.Context, manager *session.Manager, rawBPM string, pages int) {
	ranked, err := manager.SubmitTarget(ctx, rawBPM)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Ranked %d saved tracks against %.2f BPM\n", len(ranked), manager.TargetBPM())

	for p := 0; p < pages; p++ {
		page, err := manager.NextPage()
		if err != nil {
			if errors.Is(err, ranking.ErrExhausted) {
				fmt.Println("")
				fmt.Println("All recommendations shown. The next page starts over.")
				return
			}
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("")
		for _, e := range page {
			if e.Track.HasFeature() {
				fmt.Printf("%s by %s (BPM: %.2f)\n", e.Track.Name, e.Track.ArtistLine(), e.Track.Feature.Tempo)
			} else {
				fmt.Printf("%s by %s\n", e.Track.Name, e.Track.ArtistLine())
			}
		}
	}
}
