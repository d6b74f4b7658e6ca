package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/forge/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func ptr[T any](v T) *T { return &v }

func storedRun(objectiveName string) *model.Run {
	return &model.Run{
		ID:     model.NewID(),
		Status: model.StatusPending,
		Experiment: model.Experiment{
			Objective:   objectiveName,
			Population:  10,
			Generations: 4,
			Alleles:     []model.Allele{{Name: "x"}},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for range 3 {
		r := storedRun("sphere")
		if err := srv.store.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		if err := srv.store.UpdateRunStatus(ctx, r.ID, model.StatusRunning); err != nil {
			t.Fatalf("pending→running: %v", err)
		}
		completed := &model.Run{
			ID: r.ID, Status: model.StatusCompleted,
			BestFitness: ptr(0.5), Generations: 4,
			DurationMS: ptr(100), StartedAt: ptr(time.Now()), FinishedAt: ptr(time.Now()),
		}
		if err := srv.store.UpdateRun(ctx, completed); err != nil {
			t.Fatalf("UpdateRun: %v", err)
		}
	}

	fr := storedRun("rastrigin")
	if err := srv.store.CreateRun(ctx, fr); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := srv.store.UpdateRunStatus(ctx, fr.ID, model.StatusFailed); err != nil {
		t.Fatalf("pending→failed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 3 {
		t.Errorf("by_status[completed] = %d, want 3", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("by_status[failed] = %d, want 1", stats.ByStatus[model.StatusFailed])
	}
	if stats.ByObjective["sphere"] != 3 || stats.ByObjective["rastrigin"] != 1 {
		t.Errorf("by_objective = %v", stats.ByObjective)
	}
	if stats.AvgDurationMS != 100 {
		t.Errorf("avg_duration_ms = %f, want 100", stats.AvgDurationMS)
	}
	if stats.TotalGenerations != 12 {
		t.Errorf("total_generations = %d, want 12", stats.TotalGenerations)
	}
}
