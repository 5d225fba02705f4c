package source

import (
	"context"
	"fmt"

	"sensorsched/internal/sched"
)

// Catalog serves task metadata from memory.
type Catalog map[sched.TaskID]*sched.Task

// NewCatalog indexes the configured task specs by id.
func NewCatalog(specs []sched.TaskSpec) Catalog {
	c := make(Catalog, len(specs))
	for _, ts := range specs {
		c[ts.ID] = ts.Task()
	}
	return c
}

func (c Catalog) FetchTask(_ context.Context, id sched.TaskID) (*sched.Task, error) {
	t, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("task %s not in catalog", id)
	}
	return t, nil
}

// Fixed always reports the same strategy.
type Fixed string

func (f Fixed) CurrentPolicy(context.Context) (string, error) { return string(f), nil }

// Script reports a predetermined sequence of strategies, one per call, and
// repeats the last one once exhausted. An empty entry reads as a fetch
// failure.
type Script struct {
	Steps []string
	calls int
}

func (s *Script) CurrentPolicy(context.Context) (string, error) {
	if len(s.Steps) == 0 {
		return "", fmt.Errorf("empty strategy script")
	}
	i := s.calls
	if i >= len(s.Steps) {
		i = len(s.Steps) - 1
	}
	s.calls++
	if s.Steps[i] == "" {
		return "", fmt.Errorf("strategy step %d unavailable", i)
	}
	return s.Steps[i], nil
}
