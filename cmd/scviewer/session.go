package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type createSessionRequest struct {
	AgentID     string `json:"agent_id"`
	SessionType string `json:"session_type"`
}

// sessionInfo is the subset of the server's session-creation response
// the viewer needs to open its WebSocket connection.
type sessionInfo struct {
	ID      string `json:"id"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// login authenticates against the server's REST API and returns a
// bearer token for subsequent requests.
func login(serverURL, email, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	log.Info("authenticating", "email", email)
	resp, err := httpClient().Post(serverURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed (%d): %s", resp.StatusCode, string(b))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("parse login response: %w", err)
	}
	log.Info("authenticated successfully")
	return lr.AccessToken, nil
}

// createSession asks the server to open a new desktop session against
// agentID and returns the session the viewer should connect to.
func createSession(serverURL, token, agentID string) (*sessionInfo, error) {
	body, err := json.Marshal(createSessionRequest{AgentID: agentID, SessionType: "desktop"})
	if err != nil {
		return nil, err
	}

	log.Info("creating desktop session", "agent", agentID)
	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create session failed (%d): %s", resp.StatusCode, string(b))
	}

	var si sessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&si); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	log.Info("session created", "session", si.ID)
	return &si, nil
}

// resolveSession turns the viewer's CLI arguments into a concrete
// session ID and auth token: either the caller already has both, or
// the viewer logs in with email/password and asks the server to open
// a new session against the given agent.
func resolveSession(opts *viewerOptions) (sessionID, token string, err error) {
	if opts.session != "" && opts.token != "" {
		return opts.session, opts.token, nil
	}

	if opts.email == "" || opts.password == "" || opts.agent == "" {
		return "", "", fmt.Errorf("either --session and --token, or --agent with --email and --password, are required")
	}

	tok, err := login(opts.server, opts.email, opts.password)
	if err != nil {
		return "", "", err
	}

	info, err := createSession(opts.server, tok, opts.agent)
	if err != nil {
		return "", "", err
	}

	return info.ID, tok, nil
}
