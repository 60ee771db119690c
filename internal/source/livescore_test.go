package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const liveScoreSearch = `{
  "Stages": [
    {
      "Snm": "Football",
      "Events": [
        {
          "T1": [{"Nm": "AC Milan"}],
          "T2": [{"Nm": "Inter"}],
          "Tr1": "1",
          "Tr2": "1",
          "Eps": "FT"
        }
      ]
    }
  ]
}`

func TestLiveScoreFindMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/app/search" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(liveScoreSearch))
	}))
	defer srv.Close()

	src := NewLiveScore(srv.URL)
	obs, err := src.FindMatch(context.Background(), "Milan", "Inter", nil)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if obs == nil {
		t.Fatal("expected an observation, got nil")
	}
	if obs.StatusText != "1-1 (FT)" {
		t.Errorf("status text = %q, want %q", obs.StatusText, "1-1 (FT)")
	}
	if obs.HomeTeam != "AC Milan" || obs.AwayTeam != "Inter" {
		t.Errorf("teams = %q vs %q", obs.HomeTeam, obs.AwayTeam)
	}
}

func TestLiveScoreFindMatchScheduled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
  "Stages": [
    {
      "Snm": "Football",
      "Events": [
        {"T1": [{"Nm": "AC Milan"}], "T2": [{"Nm": "Inter"}], "Tr1": "", "Tr2": "", "Eps": "20:45"}
      ]
    }
  ]
}`))
	}))
	defer srv.Close()

	src := NewLiveScore(srv.URL)
	obs, err := src.FindMatch(context.Background(), "Milan", "Inter", nil)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if obs == nil {
		t.Fatal("expected an observation, got nil")
	}
	if obs.StatusText != "20:45" {
		t.Errorf("status text = %q, want the bare kickoff time", obs.StatusText)
	}
}

func TestLiveScoreFindMatchAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Stages": []}`))
	}))
	defer srv.Close()

	src := NewLiveScore(srv.URL)
	obs, err := src.FindMatch(context.Background(), "Milan", "Inter", nil)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if obs != nil {
		t.Fatalf("expected nil observation, got %+v", obs)
	}
}
