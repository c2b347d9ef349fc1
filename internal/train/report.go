package train

import (
	"io"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Report summarises a finished run for machine consumption.
type Report struct {
	RunID                string    `json:"run_id"`
	StartedAt            time.Time `json:"started_at"`
	Config               Config    `json:"config"`
	Examples             int64     `json:"examples"`
	Tokens               int64     `json:"tokens"`
	ElapsedSeconds       float64   `json:"elapsed_seconds"`
	WordsPerSecPerThread float64   `json:"words_per_sec_per_thread"`
	Loss                 *float64  `json:"loss,omitempty"`
	Inputs               int       `json:"inputs"`
	Outputs              int       `json:"outputs"`
}

// NewReport fills a Report from a finished run.
func NewReport(runID string, startedAt time.Time, cfg Config, res *Result) Report {
	r := Report{
		RunID:                runID,
		StartedAt:            startedAt.UTC(),
		Config:               cfg,
		Examples:             res.Examples,
		Tokens:               res.Tokens,
		ElapsedSeconds:       res.Elapsed.Seconds(),
		WordsPerSecPerThread: res.WordsPerSecPerThread(cfg.Threads),
		Inputs:               res.Model.Input().R,
		Outputs:              res.Model.Output().R,
	}
	// JSON cannot carry NaN; a run that recorded no example has no loss.
	if l := float64(res.Loss); !math.IsNaN(l) {
		r.Loss = &l
	}
	return r
}

// Write encodes r as indented JSON.
func (r Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
