// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/pacebox/pacebox/internal/infra/auth"
)

var (
	app          = kingpin.New("pacebox-auth", "Spotify authentication tool for pacebox")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()

	ch = make(chan *oauth2.Token)
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)

	provider, err := auth.New(auth.Config{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		RedirectURL:  redirectURL,
	})
	if err != nil {
		log.Fatalf("Failed to create auth provider: %v", err)
	}

	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		completeAuth(provider, w, r)
	})

	server := &http.Server{Addr: fmt.Sprintf(":%d", *port)}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize pacebox:")
	fmt.Println("")
	fmt.Println(provider.AuthURL())
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	token := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Access Token:")
	fmt.Println(token.AccessToken)
	fmt.Println("")
	fmt.Printf("Expires at: %s\n", token.Expiry.Format(time.RFC3339))
	fmt.Println("")
	fmt.Println("Set as environment variable:")
	fmt.Printf("export SPOTIFY_ACCESS_TOKEN=\"%s\"\n", token.AccessToken)
}

func completeAuth(provider *auth.Provider, w http.ResponseWriter, r *http.Request) {
	token, err := provider.Exchange(r.Context(), r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		log.Printf("Failed to get token: %v", err)
		return
	}

	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>pacebox - Authorization Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #1DB954 0%, #191414 100%);
            color: white;
        }
        .container {
            text-align: center;
            padding: 40px;
            background: rgba(0, 0, 0, 0.5);
            border-radius: 16px;
        }
        h1 { margin-bottom: 20px; }
        p { opacity: 0.8; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Complete</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)

	ch <- token
}
