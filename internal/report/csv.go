package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

// CSVSink appends one row per record.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVSink writes a header and returns a sink writing to w.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	cw.Write([]string{"run_id", "task_id", "sensor", "finish_time", "description", "safety", "realtime", "duration", "attempts"})
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &CSVSink{w: cw}, nil
}

// CreateCSVSink creates (or truncates) path and writes records to it.
func CreateCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewCSVSink(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

func (*CSVSink) Name() string { return "csv" }

func (s *CSVSink) Publish(rec Record) error {
	s.w.Write([]string{
		rec.RunID,
		rec.TaskID,
		rec.Sensor,
		strconv.FormatFloat(rec.FinishTime, 'f', 2, 64),
		rec.Description,
		rec.Safety,
		strconv.Itoa(rec.Realtime),
		strconv.FormatFloat(rec.Duration, 'f', -1, 64),
		strconv.Itoa(rec.Attempts),
	})
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if s.closer == nil {
		return s.w.Error()
	}
	return s.closer.Close()
}
