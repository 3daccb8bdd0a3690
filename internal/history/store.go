package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erg0nix/samtale/internal/core"
)

// FileStore persists conversation logs under a data directory: one JSONL
// file of messages per session, plus a small meta file holding the current
// compaction state, overwritten on each successful compaction.
type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

func (s *FileStore) sessionDir() string {
	return filepath.Join(s.dataDir, "sessions")
}

func (s *FileStore) messagesPath(id core.SessionID) string {
	return filepath.Join(s.sessionDir(), string(id)+".jsonl")
}

func (s *FileStore) metaPath(id core.SessionID) string {
	return filepath.Join(s.sessionDir(), string(id)+".meta.json")
}

// Open loads the session's log from disk, creating an empty one if the
// session is new.
func (s *FileStore) Open(id core.SessionID) (*Log, error) {
	if err := os.MkdirAll(s.sessionDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}

	messages, err := s.readMessages(id)
	if err != nil {
		return nil, err
	}

	state, err := s.readState(id)
	if err != nil {
		return nil, err
	}

	log, err := NewStoredLog(&sessionStore{fileStore: s, id: id}, messages, state)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	return log, nil
}

// List returns the IDs of all sessions with a message file on disk.
func (s *FileStore) List() ([]core.SessionID, error) {
	entries, err := os.ReadDir(s.sessionDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var ids []core.SessionID
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".jsonl" {
			continue
		}
		ids = append(ids, core.SessionID(name[:len(name)-len(".jsonl")]))
	}

	return ids, nil
}

func (s *FileStore) readMessages(id core.SessionID) ([]core.Message, error) {
	file, err := os.Open(s.messagesPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	var messages []core.Message
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg core.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("parse message %d: %w", len(messages), err)
		}
		messages = append(messages, msg)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	return messages, nil
}

func (s *FileStore) readState(id core.SessionID) (core.CompactionState, error) {
	var state core.CompactionState

	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read session metadata: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse session metadata: %w", err)
	}

	return state, nil
}

// sessionStore binds a FileStore to one session, implementing Store.
type sessionStore struct {
	fileStore *FileStore
	id        core.SessionID
}

func (s *sessionStore) AppendMessage(msg core.Message) error {
	file, err := os.OpenFile(s.fileStore.messagesPath(s.id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(msg)
}

func (s *sessionStore) WriteState(state core.CompactionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	path := s.fileStore.metaPath(s.id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
