package transcript

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/chatloop/internal/engine"
)

func decodeAll(t *testing.T, data []byte) []Record {
	t.Helper()
	var out []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	return out
}

func TestWriterRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	if err := w.Start(engine.Info{Path: "tiny.yaml", Backend: "toy", ContextSize: 2048}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Turn(Turn{User: "hi", Assistant: "<b>hello</b>", Stop: "eog", Tokens: 3, PromptTokens: 12, ContextUsed: 15}); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if err := w.Failed("again", "par", errors.New("context size exceeded")); err != nil {
		t.Fatalf("failed: %v", err)
	}
	if err := w.End("eof"); err != nil {
		t.Fatalf("end: %v", err)
	}

	recs := decodeAll(t, buf.Bytes())
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	wantTypes := []string{TypeStart, TypeTurn, TypeTurnFailed, TypeEnd}
	for i, r := range recs {
		if r.Type != wantTypes[i] || r.Seq != i+1 || r.Session != w.SessionID() || !r.Time.Equal(fixed) {
			t.Fatalf("record %d = %+v", i, r)
		}
	}
	if recs[0].Model != "tiny.yaml" || recs[0].ContextSize != 2048 {
		t.Fatalf("unexpected start record %+v", recs[0])
	}
	if recs[1].Assistant != "<b>hello</b>" || recs[1].Stop != "eog" || recs[1].ContextUsed != 15 {
		t.Fatalf("unexpected turn record %+v", recs[1])
	}
	if !bytes.Contains(buf.Bytes(), []byte("<b>hello</b>")) {
		t.Fatalf("HTML must not be escaped: %s", buf.String())
	}
	if recs[2].Error != "context size exceeded" || recs[2].Assistant != "par" {
		t.Fatalf("unexpected failure record %+v", recs[2])
	}
	if recs[3].Reason != "eof" {
		t.Fatalf("unexpected end record %+v", recs[3])
	}
}

func TestNilWriterDiscards(t *testing.T) {
	t.Parallel()

	var w *Writer
	if err := w.Start(engine.Info{}); err != nil {
		t.Fatalf("nil start: %v", err)
	}
	if err := w.Turn(Turn{}); err != nil {
		t.Fatalf("nil turn: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if w.SessionID() != "" {
		t.Fatalf("nil writer has no session")
	}
}

func TestCreateAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chat.jsonl")
	for i := 0; i < 2; i++ {
		w, err := Create(path)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := w.End("eof"); err != nil {
			t.Fatalf("end: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	recs := decodeAll(t, data)
	if len(recs) != 2 || recs[0].Session == recs[1].Session {
		t.Fatalf("expected two sessions appended, got %+v", recs)
	}
}
