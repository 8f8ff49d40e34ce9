package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// authState is the persisted result of a claim exchange. SimpleFIN claim
// tokens are single-use, so the access URL must be saved after claiming.
type authState struct {
	AccessURL string    `json:"access_url"`
	ClaimedAt time.Time `json:"claimed_at"`
	TokenHint string    `json:"token_hint"`
}

// defaultStateFile resolves where the claimed access URL is stored.
func defaultStateFile() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "lens", "simplefin.json"), nil
}

// loadOrClaim returns the saved access URL for this setup token, claiming
// and persisting a fresh one when no usable state exists.
func loadOrClaim(ctx context.Context, client *http.Client, stateFile, token string) (*authState, error) {
	if state, err := loadAuthState(stateFile); err == nil && state.AccessURL != "" {
		slog.Debug("Using saved SimpleFIN access URL",
			"claimed_at", state.ClaimedAt.Format("2006-01-02"),
			"state_file", stateFile)
		return state, nil
	}

	slog.Info("Claiming SimpleFIN setup token")
	accessURL, err := claimAccessURL(ctx, client, token)
	if err != nil {
		return nil, fmt.Errorf("failed to claim setup token: %w", err)
	}

	state := &authState{
		AccessURL: accessURL,
		ClaimedAt: time.Now(),
		TokenHint: tokenHint(token),
	}
	if err := saveAuthState(stateFile, state); err != nil {
		return nil, fmt.Errorf("failed to save access URL: %w", err)
	}

	slog.Info("SimpleFIN access URL saved", "state_file", stateFile)
	return state, nil
}

// claimAccessURL exchanges a setup token for an access URL. The token is
// a base64-encoded claim URL that must be POSTed to exactly once.
func claimAccessURL(ctx context.Context, client *http.Client, token string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("setup token is not valid base64: %w", err)
		}
	}

	claimURL := strings.TrimSpace(string(decoded))
	if !strings.HasPrefix(claimURL, "http://") && !strings.HasPrefix(claimURL, "https://") {
		return "", fmt.Errorf("setup token does not decode to a URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claim request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read claim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claim rejected: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !strings.HasPrefix(accessURL, "http://") && !strings.HasPrefix(accessURL, "https://") {
		return "", fmt.Errorf("claim returned an invalid access URL")
	}
	return accessURL, nil
}

func loadAuthState(path string) (*authState, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var state authState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func saveAuthState(path string, state *authState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// tokenHint keeps just enough of the token to recognize it later.
func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short token"
}
