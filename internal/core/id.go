package core

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

type StreamID string

func NewSessionID() SessionID {
	return SessionID("sess_" + time.Now().UTC().Format("20060102T150405") + "_" + uuid.NewString()[:8])
}

func NewStreamID() StreamID {
	return StreamID("stream_" + uuid.NewString())
}
