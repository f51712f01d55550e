package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a session.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Store persists run state snapshots as JSON files, one per session. Writes
// go to a temp file first and are renamed into place, so a crash mid-write
// never leaves a torn checkpoint behind.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save snapshots the state under its session ID. The session ID doubles as
// the resumption token handed back to callers.
func (s *Store) Save(state *domain.RunState) error {
	if err := validSessionID(state.SessionID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}

	target := s.path(state.SessionID)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		"session_id", state.SessionID, "phase", state.Phase, "path", target)
	return nil
}

// Load rehydrates the state for one session.
func (s *Store) Load(sessionID string) (*domain.RunState, error) {
	if err := validSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, sessionID)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	return &state, nil
}

// Sessions lists the session IDs with a stored checkpoint.
func (s *Store) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func validSessionID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
