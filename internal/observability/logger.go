package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStep       EventType = "step"
	EventTypeScreenshot EventType = "screenshot"
	EventTypePlan       EventType = "plan"
	EventTypeResults    EventType = "results"
	EventTypePageText   EventType = "page_text"
	EventTypeAggregate  EventType = "aggregate"
	EventTypeIndex      EventType = "index"
	EventTypeError      EventType = "error"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	logPath string
	maxSize int64
}

func NewLogger() *Logger {
	return &Logger{
		logPath: filepath.Join("logs", "recorder.jsonl"),
		maxSize: 10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout and mirrors it to the
// rotating file sink.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))
	l.writeToFile(data)
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.logPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.logPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.logPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogStep(runID string, step int, dir string) {
	l.Log(Event{
		Type:  EventTypeStep,
		RunID: runID,
		Step:  step,
		Data:  map[string]string{"dir": dir},
	})
}

func (l *Logger) LogArtifact(typ EventType, runID string, step int, path string) {
	l.Log(Event{
		Type:  typ,
		RunID: runID,
		Step:  step,
		Data:  map[string]string{"path": path},
	})
}

func (l *Logger) LogAggregate(runID string, path string, plans int) {
	l.Log(Event{
		Type:  EventTypeAggregate,
		RunID: runID,
		Data: map[string]any{
			"path":  path,
			"plans": plans,
		},
	})
}

func (l *Logger) LogError(runID string, step int, op string, err error) {
	l.Log(Event{
		Type:  EventTypeError,
		RunID: runID,
		Step:  step,
		Data: map[string]string{
			"op":    op,
			"error": err.Error(),
		},
	})
}
