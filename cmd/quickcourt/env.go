package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quickcourt/quickcourt/internal/booking"
)

const defaultAPIURL = "http://localhost:8080/api/v1"

type environment struct {
	APIURL      string
	SessionFile string
}

func loadEnvironment() environment {
	env := environment{
		APIURL:      os.Getenv("QUICKCOURT_API_URL"),
		SessionFile: os.Getenv("QUICKCOURT_SESSION_FILE"),
	}
	if env.APIURL == "" {
		env.APIURL = defaultAPIURL
	}
	if env.SessionFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			env.SessionFile = filepath.Join(home, ".quickcourt", "session.json")
		} else {
			env.SessionFile = ".quickcourt-session.json"
		}
	}
	return env
}

// loadSession returns nil, without error, when nobody has logged in yet.
func loadSession(path string) (*booking.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var session booking.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &session, nil
}

func saveSession(path string, session *booking.Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
