package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashu-1911/sutra-backend/internal/timetable"
)

func TestHTTPClientGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "draft please", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{Model: "llama3", Response: "  | Day | Time |\n"})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL + "/", Model: "llama3", Timeout: time.Second}, nil)
	text, err := client.Generate(context.Background(), "draft please")
	require.NoError(t, err)
	assert.Equal(t, "| Day | Time |", text)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: time.Second, MaxRetries: 1, RetryDelay: 10 * time.Millisecond}, nil)
	text, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPClientReportsExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: time.Second, MaxRetries: 2, RetryDelay: 20 * time.Millisecond}, nil)
	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrRetryExhausted)
}

func TestHTTPClientBacksOffBetweenAttempts(t *testing.T) {
	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamp = append(stamp, time.Now())
		mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: time.Second, MaxRetries: 2, RetryDelay: 30 * time.Millisecond}, nil)
	_, err := client.Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrRetryExhausted)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamp, 3)
	assert.GreaterOrEqual(t, stamp[1].Sub(stamp[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, stamp[2].Sub(stamp[1]), 60*time.Millisecond)
}

func TestHTTPClientStopsRetryingWhenDeadlinePassesDuringBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: 100 * time.Millisecond, MaxRetries: 3, RetryDelay: time.Second}, nil)
	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestHTTPClientEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "   "})
	}))
	defer srv.Close()

	client := NewHTTPClient(Config{URL: srv.URL, Timeout: time.Second}, nil)
	_, err := client.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBuildPromptListsCatalogAndGrid(t *testing.T) {
	ds := timetable.Dataset{
		Branch:   "CS",
		Division: "A",
		Theory:   []timetable.Course{{Name: "Operating Systems", Kind: timetable.KindTheory}},
		Labs:     []timetable.Course{{Name: "OS Lab", Kind: timetable.KindLab}},
		Faculty:  []timetable.FacultyMember{{Name: "Dr. Rao", SubjectTag: "OS"}},
		Venues:   []timetable.Venue{{ID: "H101", Category: timetable.VenueTheory}},
		Batches:  []timetable.Batch{{ID: "B1"}, {ID: "B2"}},
	}
	grid := timetable.DefaultGrid()
	prompt := BuildPrompt(grid, timetable.BuildCatalog(ds, timetable.Limits{}, 2))

	assert.Contains(t, prompt, "| Day | Time | Class/Batch | Course Name | Faculty | Venue |")
	assert.Contains(t, prompt, "Operating Systems, 2 sessions per week")
	assert.Contains(t, prompt, "- OS Lab")
	assert.Contains(t, prompt, "Batches: B1, B2")
	assert.Contains(t, prompt, "Dr. Rao (OS)")
	assert.Contains(t, prompt, "Tuesday 2:00-3:00: Library in Library")
	assert.Contains(t, prompt, "- Saturday: 9:00-10:00, 10:00-11:00, 11:15-12:15\n")
	assert.True(t, strings.HasSuffix(prompt, "| Sunday | - | - | Holiday | - | - |\n"))
}
