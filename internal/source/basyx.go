package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sensorsched/internal/sched"
)

// BaSyx reads task metadata and the active strategy from an AAS server's
// submodel element endpoints.
type BaSyx struct {
	TaskURL     string // base of the task submodel elements; the task id is appended
	StrategyURL string // the strategy property element
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// NewBaSyx creates a client with a per-request timeout.
func NewBaSyx(taskURL, strategyURL string, timeout time.Duration, logger *slog.Logger) *BaSyx {
	return &BaSyx{
		TaskURL:     strings.TrimRight(taskURL, "/"),
		StrategyURL: strategyURL,
		HTTPClient:  &http.Client{Timeout: timeout},
		Logger:      logger.With("component", "basyx"),
	}
}

// langString is an AAS multi-language text entry.
type langString struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// element is the subset of an AAS submodel element this client reads.
type element struct {
	IDShort     string          `json:"idShort"`
	Value       json.RawMessage `json:"value"`
	Description []langString    `json:"description"`
}

// FetchTask loads the task collection element named id.
func (c *BaSyx) FetchTask(ctx context.Context, id sched.TaskID) (*sched.Task, error) {
	var coll element
	if err := c.getJSON(ctx, c.TaskURL+"/"+url.PathEscape(string(id)), &coll); err != nil {
		return nil, err
	}

	var props []element
	if len(coll.Value) > 0 {
		if err := json.Unmarshal(coll.Value, &props); err != nil {
			return nil, fmt.Errorf("parse task %s properties: %w", id, err)
		}
	}

	t := &sched.Task{ID: id}
	for _, d := range coll.Description {
		if d.Language == "en" {
			t.Description = d.Text
		}
	}
	for _, p := range props {
		v := scalar(p.Value)
		switch p.IDShort {
		case "Duration":
			d, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("task %s: bad Duration %q: %w", id, v, err)
			}
			t.SetDuration(d)
		case "Safety_level":
			t.SetSafety(v)
		case "Timing_criticality":
			rt, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("task %s: bad Timing_criticality %q: %w", id, v, err)
			}
			t.SetCriticality(rt)
		}
	}
	return t, nil
}

// CurrentPolicy returns the strategy property value, lowercased and
// trimmed. A property without a value reads as fair.
func (c *BaSyx) CurrentPolicy(ctx context.Context) (string, error) {
	var prop element
	if err := c.getJSON(ctx, c.StrategyURL, &prop); err != nil {
		return "", err
	}
	v := strings.ToLower(strings.TrimSpace(scalar(prop.Value)))
	if v == "" {
		return string(sched.PolicyFair), nil
	}
	return v, nil
}

func (c *BaSyx) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.Logger.Debug("HTTP request", "method", req.Method, "url", target)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "url", target)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// scalar renders a property value whether it was published as a JSON
// string or a bare number.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
