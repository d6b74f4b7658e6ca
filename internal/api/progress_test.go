package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seantiz/forge/internal/model"
)

func TestStreamProgressFinishedRun(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	r := storedRun("sphere")
	if err := srv.store.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := srv.store.UpdateRunStatus(ctx, r.ID, model.StatusFailed); err != nil {
		t.Fatalf("pending→failed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + r.ID + "/progress")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestStreamProgressReceivesGenerations(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Slow enough that the stream attaches before the first generation.
	resp := postRun(t, ts, `{"experiment":{"objective":"slow","population":10,"generations":2,"alleles":[{"name":"x"}]}}`)
	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/progress")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer resp.Body.Close()

	var records []model.GenerationRecord
	var sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: {"):
			var rec model.GenerationRecord
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			records = append(records, rec)
		case line == "event: done":
			sawDone = true
		}
	}

	if !sawDone {
		t.Error("stream ended without a done event")
	}
	if len(records) == 0 {
		t.Fatal("received no generation events")
	}
	last := records[len(records)-1]
	if last.RunID != run.ID || last.Generation != 2 {
		t.Errorf("last event = %+v, want generation 2 of %s", last, run.ID)
	}
}

func TestWriteSSEDataSplitsLines(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeSSEData(rec, "a\nb"); err != nil {
		t.Fatalf("writeSSEData: %v", err)
	}
	if got := rec.Body.String(); got != "data: a\ndata: b\n\n" {
		t.Errorf("body = %q", got)
	}
}
