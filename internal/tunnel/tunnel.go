// Package tunnel discovers the public URL of a local ngrok agent.
package tunnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const DefaultAPIURL = "http://127.0.0.1:4040/api/tunnels"

var ErrNoTunnel = errors.New("no tunnel is running")

type tunnelList struct {
	Tunnels []struct {
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
	} `json:"tunnels"`
}

// PublicURL asks the agent API for its tunnels and returns the first https public URL,
// or the first URL of any scheme when no https tunnel exists.
func PublicURL(ctx context.Context, client *http.Client, apiURL string) (string, error) {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query tunnel api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tunnel api returned %d", resp.StatusCode)
	}

	var list tunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("decode tunnel list: %w", err)
	}
	first := ""
	for _, t := range list.Tunnels {
		if t.PublicURL == "" {
			continue
		}
		if strings.HasPrefix(t.PublicURL, "https://") {
			return t.PublicURL, nil
		}
		if first == "" {
			first = t.PublicURL
		}
	}
	if first == "" {
		return "", ErrNoTunnel
	}
	return first, nil
}
