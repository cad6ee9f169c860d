// Package journal records every trade action the agent takes as JSON
// lines, one file per day, so sessions can be reviewed after the fact.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one journaled trade action with its per-account results.
type Entry struct {
	Time      time.Time `json:"time"`
	BatchID   string    `json:"batch_id,omitempty"`
	Verb      string    `json:"verb"`
	Symbol    string    `json:"symbol,omitempty"`
	Side      string    `json:"side,omitempty"`
	OrderType string    `json:"order_type,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Status    string    `json:"status"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Results   any       `json:"results,omitempty"`
}

// Writer appends entries asynchronously to date-organized JSONL files.
type Writer struct {
	baseDir     string
	maxSizeMB   int
	writeCh     chan Entry
	done        chan struct{}
	wg          sync.WaitGroup
	currentDate string
	logger      *lumberjack.Logger
	mu          sync.Mutex
}

// NewWriter creates an async journal writer.
func NewWriter(baseDir string, bufferSize, maxSizeMB int) *Writer {
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.writeLoop()

	return w
}

// Record queues an entry for async writing. A full buffer drops the entry
// rather than stalling the caller.
func (w *Writer) Record(entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	select {
	case w.writeCh <- entry:
		return nil
	case <-w.done:
		return fmt.Errorf("journal is closed")
	default:
		slog.Warn("Journal buffer full, dropping entry", "verb", entry.Verb)
		return fmt.Errorf("buffer full")
	}
}

// Close shuts down the writer and flushes pending entries.
func (w *Writer) Close() error {
	close(w.done)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case entry := <-w.writeCh:
			w.writeEntry(entry)
		case <-timeout:
			slog.Warn("Journal close timeout, some entries may be lost")
			goto done
		default:
			goto done
		}
	}

done:
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()

	for {
		select {
		case entry := <-w.writeCh:
			w.writeEntry(entry)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeEntry(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal journal entry", "error", err, "verb", entry.Verb)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	currentDate := time.Now().UTC().Format("2006-01-02")
	if currentDate != w.currentDate || w.logger == nil {
		w.rotateForDate(currentDate)
	}
	if w.logger == nil {
		return
	}

	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write journal entry", "error", err)
	}
}

func (w *Writer) rotateForDate(date string) {
	if w.logger != nil {
		w.logger.Close()
		w.logger = nil
	}

	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		slog.Error("Failed to create journal directory", "error", err, "dir", w.baseDir)
		return
	}

	filename := filepath.Join(w.baseDir, "trades-"+date+".jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}

	w.currentDate = date
	slog.Info("Opened new journal file", "file", filename)
}
