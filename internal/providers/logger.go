package providers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/erg0nix/samtale/internal/core"
)

// RequestLogger writes provider traffic to daily JSONL files for debugging.
type RequestLogger struct {
	logDir       string
	logRequests  bool
	logResponses bool
}

type logEntry struct {
	Timestamp  string         `json:"timestamp"`
	Type       string         `json:"type"`
	Model      string         `json:"model"`
	Messages   []core.Message `json:"messages,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
}

func NewRequestLogger(logDir string, logRequests, logResponses bool) *RequestLogger {
	return &RequestLogger{logDir: logDir, logRequests: logRequests, logResponses: logResponses}
}

func (l *RequestLogger) LogRequest(model string, messages []core.Message) {
	if !l.logRequests {
		return
	}

	l.writeLog(logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      "request",
		Model:     model,
		Messages:  messages,
	})

	slog.Debug("provider request", "model", model, "message_count", len(messages))
}

func (l *RequestLogger) LogError(model string, statusCode int, errorBody []byte) {
	l.writeLog(logEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Type:       "error",
		Model:      model,
		StatusCode: statusCode,
		Error:      string(errorBody),
	})

	slog.Error("provider request failed", "model", model, "status_code", statusCode, "error", string(errorBody))
}

func (l *RequestLogger) writeLog(entry logEntry) {
	if l.logDir == "" {
		return
	}

	_ = os.MkdirAll(l.logDir, 0o755)

	logFile := filepath.Join(l.logDir, fmt.Sprintf("provider_%s.jsonl", time.Now().Format("2006-01-02")))

	data, _ := json.Marshal(entry)
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer file.Close()

	_, _ = file.Write(append(data, '\n'))
}
