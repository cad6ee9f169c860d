package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecordWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 10, 5)

	if err := w.Record(Entry{
		Verb:      "submit",
		Symbol:    "NQ",
		Side:      "BUY",
		OrderType: "LMT",
		Price:     21000.25,
		Status:    "ok",
		Succeeded: 2,
	}); err != nil {
		t.Fatalf("Record() = %v; want nil", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	f, err := os.Open(filepath.Join(dir, "trades-"+date+".jsonl"))
	if err != nil {
		t.Fatalf("open journal file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("journal file is empty")
	}
	var got Entry
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if got.Verb != "submit" || got.Price != 21000.25 || got.Succeeded != 2 {
		t.Fatalf("entry = %+v", got)
	}
	if got.Time.IsZero() {
		t.Fatal("entry should be timestamped automatically")
	}
}

func TestRecordAfterClose(t *testing.T) {
	w := NewWriter(t.TempDir(), 10, 5)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}
	err := w.Record(Entry{Verb: "submit"})
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Record() after close = %v; want closed error", err)
	}
}
