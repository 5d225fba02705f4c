package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"sensorsched/internal/sched"
)

// fakeAAS serves task collections and a strategy property the way a BaSyx
// submodel repository does.
type fakeAAS struct {
	tasks    map[string]any
	strategy any
}

func (f *fakeAAS) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/tasks/submodel-elements/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, ok := f.tasks[chi.URLParam(req, "id")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, body)
	})
	r.Get("/strategy/submodel-elements/simpy", func(w http.ResponseWriter, req *http.Request) {
		if f.strategy == nil {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, f.strategy)
	})
	r.Get("/broken/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("{not json"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func taskElement(duration, safety, timing any, desc string) map[string]any {
	return map[string]any{
		"idShort":     "Task",
		"modelType":   "SubmodelElementCollection",
		"description": []map[string]string{{"language": "de", "text": "Aufgabe"}, {"language": "en", "text": desc}},
		"value": []map[string]any{
			{"idShort": "Duration", "modelType": "Property", "value": duration},
			{"idShort": "Safety_level", "modelType": "Property", "value": safety},
			{"idShort": "Timing_criticality", "modelType": "Property", "value": timing},
		},
	}
}

func newTestClient(t *testing.T, f *fakeAAS) *BaSyx {
	t.Helper()
	ts := httptest.NewServer(f.router())
	t.Cleanup(ts.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBaSyx(ts.URL+"/tasks/submodel-elements/", ts.URL+"/strategy/submodel-elements/simpy", time.Second, logger)
}

func TestBaSyx_FetchTask(t *testing.T) {
	c := newTestClient(t, &fakeAAS{tasks: map[string]any{
		"Task1": taskElement("2.5", "d", "3", "Emergency Obstacle Detection"),
		"Task2": taskElement(4, "X", 1, "Navigation Map Update"),
	}})

	t1, err := c.FetchTask(context.Background(), "Task1")
	require.NoError(t, err)
	require.Equal(t, sched.TaskID("Task1"), t1.ID)
	require.Equal(t, 2.5, t1.Duration)
	require.Equal(t, sched.SafetyD, t1.Safety)
	require.Equal(t, "d", t1.SafetyLabel)
	require.Equal(t, 3, t1.Criticality)
	require.Equal(t, "Emergency Obstacle Detection", t1.Description)
	require.NoError(t, t1.Validate())

	t2, err := c.FetchTask(context.Background(), "Task2")
	require.NoError(t, err)
	require.Equal(t, sched.SafetyA, t2.Safety, "unknown labels default to A")
	require.Equal(t, 4.0, t2.Duration)
}

func TestBaSyx_FetchTaskMissingPropertyLeavesFieldUnset(t *testing.T) {
	el := taskElement("1", "B", "2", "partial")
	el["value"] = []map[string]any{{"idShort": "Duration", "value": "1"}}
	c := newTestClient(t, &fakeAAS{tasks: map[string]any{"Task3": el}})

	task, err := c.FetchTask(context.Background(), "Task3")
	require.NoError(t, err)

	_, err = task.Score()
	var missing *sched.MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, sched.FieldSafety, missing.Field)
}

func TestBaSyx_FetchTaskErrors(t *testing.T) {
	c := newTestClient(t, &fakeAAS{tasks: map[string]any{
		"Bad": taskElement("soon", "A", "1", ""),
	}})

	_, err := c.FetchTask(context.Background(), "Nope")
	require.ErrorContains(t, err, "status 404")

	_, err = c.FetchTask(context.Background(), "Bad")
	require.ErrorContains(t, err, "bad Duration")
}

func TestBaSyx_MalformedPayload(t *testing.T) {
	ts := httptest.NewServer((&fakeAAS{}).router())
	defer ts.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBaSyx(ts.URL+"/broken", ts.URL+"/broken/strategy", time.Second, logger)

	_, err := c.FetchTask(context.Background(), "x")
	require.ErrorContains(t, err, "parse response")

	_, err = c.CurrentPolicy(context.Background())
	require.ErrorContains(t, err, "parse response")
}

func TestBaSyx_CurrentPolicy(t *testing.T) {
	f := &fakeAAS{strategy: map[string]any{"idShort": "simpy", "value": "  Mixed-Critical \n"}}
	c := newTestClient(t, f)

	got, err := c.CurrentPolicy(context.Background())
	require.NoError(t, err)
	require.Equal(t, "mixed-critical", got)

	f.strategy = map[string]any{"idShort": "simpy"}
	got, err = c.CurrentPolicy(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fair", got)

	f.strategy = nil
	_, err = c.CurrentPolicy(context.Background())
	require.ErrorContains(t, err, "status 503")
}

func TestBaSyx_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewBaSyx("http://127.0.0.1:1/tasks", "http://127.0.0.1:1/strategy", 200*time.Millisecond, logger)

	_, err := c.CurrentPolicy(context.Background())
	require.ErrorContains(t, err, "request failed")
}

func TestCatalogAndScript(t *testing.T) {
	cat := NewCatalog([]sched.TaskSpec{{ID: "T1", Safety: "C", Realtime: 2, Duration: 1}})
	task, err := cat.FetchTask(context.Background(), "T1")
	require.NoError(t, err)
	require.Equal(t, sched.SafetyC, task.Safety)

	_, err = cat.FetchTask(context.Background(), "T9")
	require.Error(t, err)

	s := &Script{Steps: []string{"fair", "", "energy-aware"}}
	got, err := s.CurrentPolicy(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fair", got)
	_, err = s.CurrentPolicy(context.Background())
	require.Error(t, err)
	for i := 0; i < 3; i++ {
		got, err = s.CurrentPolicy(context.Background())
		require.NoError(t, err)
		require.Equal(t, "energy-aware", got)
	}

	_, err = (&Script{}).CurrentPolicy(context.Background())
	require.True(t, err != nil && !errors.Is(err, context.Canceled))

	got, _ = Fixed("fair").CurrentPolicy(context.Background())
	require.Equal(t, "fair", got)
}
