package mealwizard

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// SessionLogger is the interface for wizard session logging.
type SessionLogger interface {
	LogStep(step StepLog) error
}

// NewSessionLogFilePath returns a file path keyed by time and event id so logs of
// separate planning sessions are easy to tell apart.
func NewSessionLogFilePath(eventID string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(strings.ToLower(eventID)),
	)
}

// StepLog represents a single wizard action.
type StepLog struct {
	Sequence  int          `json:"sequence"`
	Timestamp time.Time    `json:"timestamp"`
	Step      string       `json:"step"`
	Action    string       `json:"action"`
	Category  MealCategory `json:"category,omitempty"`
	Details   any          `json:"details,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// FileSessionLogger accumulates steps and writes them out on Flush.
type FileSessionLogger struct {
	steps  []StepLog
	writer io.Writer
}

func NewFileSessionLogger(writer io.Writer) *FileSessionLogger {
	return &FileSessionLogger{
		steps:  make([]StepLog, 0),
		writer: writer,
	}
}

// LogStep buffers the step (does not flush immediately)
func (l *FileSessionLogger) LogStep(step StepLog) error {
	l.steps = append(l.steps, step)
	return nil
}

// Flush writes all buffered steps to the writer as one JSON document.
func (l *FileSessionLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"wizard_session": map[string]any{
			"timestamp": time.Now(),
			"steps":     l.steps,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}

	l.steps = l.steps[:0]
	return nil
}

// NoOpSessionLogger discards all steps.
type NoOpSessionLogger struct{}

func NewNoOpSessionLogger() *NoOpSessionLogger {
	return &NoOpSessionLogger{}
}

func (nop *NoOpSessionLogger) LogStep(step StepLog) error {
	return nil
}

// StdoutSessionLogger writes each step as a JSON line to stdout (for Lambda/CloudWatch)
type StdoutSessionLogger struct {
	out io.Writer
}

func NewStdoutSessionLogger() *StdoutSessionLogger {
	return &StdoutSessionLogger{out: os.Stdout}
}

func (l *StdoutSessionLogger) LogStep(step StepLog) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
