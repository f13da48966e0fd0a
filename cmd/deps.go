package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/chat"
	"github.com/joescharf/triage/internal/extract"
	"github.com/joescharf/triage/internal/review"
	"github.com/joescharf/triage/internal/reviewstore"
	"github.com/joescharf/triage/internal/tracker"
)

// newLogger builds the shared structured logger. Verbose lowers the level.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newMessenger builds the chat client from config.
func newMessenger() (chat.Messenger, string, error) {
	token := viper.GetString("chat.token")
	channel := viper.GetString("chat.channel")
	if token == "" || channel == "" {
		return nil, "", fmt.Errorf("chat.token and chat.channel must be configured (or TRIAGE_CHAT_TOKEN / TRIAGE_CHAT_CHANNEL)")
	}
	return chat.NewSlackClient(token), channel, nil
}

// newTracker builds the retrying tracker client from config.
func newTracker(logger *slog.Logger) (*tracker.Client, error) {
	baseURL := viper.GetString("tracker.base_url")
	if baseURL == "" {
		return nil, fmt.Errorf("tracker.base_url must be configured")
	}
	api := tracker.NewHTTPClient(baseURL, viper.GetString("tracker.token"))
	return tracker.NewClient(api, logger), nil
}

// newCoordinator wires the review coordinator from config.
func newCoordinator(store reviewstore.Store, logger *slog.Logger) (*review.Coordinator, error) {
	messenger, channel, err := newMessenger()
	if err != nil {
		return nil, err
	}
	tc, err := newTracker(logger)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(viper.GetInt("review.ttl_minutes")) * time.Minute
	return review.NewCoordinator(store, tc, messenger, channel, ttl, logger), nil
}

// newExtractor builds the LLM extraction client from config.
func newExtractor() (*extract.Client, error) {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}
	return extract.NewClient(apiKey, viper.GetString("anthropic.model")), nil
}
