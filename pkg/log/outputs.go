package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes log entries to stdout or stderr.
type ConsoleOutput struct {
	mu        sync.Mutex
	useStderr bool
	writer    io.Writer
}

// ConsoleOutputOption is a function that configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// WithStderr configures the ConsoleOutput to use stderr.
func WithStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.useStderr = true
	}
}

// WithWriter configures the ConsoleOutput to use a custom writer.
func WithWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.writer = w
	}
}

// NewConsoleOutput creates a new ConsoleOutput with the given options.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{}
	for _, option := range options {
		option(o)
	}
	return o
}

// Write writes the log entry to the console.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	w := o.writer
	if w == nil {
		w = os.Stdout
		if o.useStderr {
			w = os.Stderr
		}
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements the Output interface but does nothing for console output.
func (o *ConsoleOutput) Close() error {
	return nil
}

// FileOutput appends log entries to a file.
type FileOutput struct {
	mu       sync.Mutex
	filename string
	file     *os.File
}

// NewFileOutput creates a new FileOutput. The file is opened on first write.
func NewFileOutput(filename string) *FileOutput {
	return &FileOutput{filename: filename}
}

// Write writes the log entry to the file.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		if err := os.MkdirAll(filepath.Dir(o.filename), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(o.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		o.file = f
	}

	_, err := o.file.Write(formatted)
	return err
}

// Close closes the file.
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}

// NullOutput discards log entries.
type NullOutput struct{}

// NewNullOutput creates a new NullOutput.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

// Write discards the entry.
func (o *NullOutput) Write(*Entry, []byte) error { return nil }

// Close does nothing.
func (o *NullOutput) Close() error { return nil }
