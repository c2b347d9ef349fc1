package vecfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/tensor"
	"github.com/samcharles93/fastvec/internal/train"
)

const (
	InputFile    = "input.vec"
	OutputFile   = "output.vec"
	ManifestFile = "manifest.json"
)

var ErrManifest = errors.New("vecfile: invalid manifest")

// Manifest describes an export directory.  Counts holds one frequency per
// output row, which ns and hs need to rebuild their tables.
type Manifest struct {
	RunID             string     `json:"run_id"`
	CreatedAt         time.Time  `json:"created_at"`
	Mode              train.Mode `json:"mode"`
	Loss              model.Kind `json:"loss"`
	Dim               int        `json:"dim"`
	Neg               int        `json:"neg"`
	NormalizeGradient bool       `json:"normalize_gradient"`
	Inputs            int        `json:"inputs"`
	Outputs           int        `json:"outputs"`
	Counts            []int64    `json:"counts"`
	FinalLoss         *float64   `json:"final_loss,omitempty"`
}

// NewRunID returns a fresh identifier for a training run.
func NewRunID() string { return uuid.NewString() }

// NewManifest describes the result of a training run.
func NewManifest(runID string, cfg train.Config, res *train.Result) Manifest {
	m := Manifest{
		RunID:             runID,
		CreatedAt:         time.Now().UTC(),
		Mode:              cfg.Mode,
		Loss:              cfg.Loss,
		Dim:               cfg.Dim,
		Neg:               cfg.Neg,
		NormalizeGradient: cfg.NormalizeGradient,
		Inputs:            res.Model.Input().R,
		Outputs:           res.Model.Output().R,
		Counts:            res.Counts,
	}
	if l := float64(res.Loss); !math.IsNaN(l) {
		m.FinalLoss = &l
	}
	return m
}

func (m Manifest) validate() error {
	if _, err := model.ParseKind(string(m.Loss)); err != nil {
		return fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if m.Dim <= 0 || m.Inputs <= 0 || m.Outputs <= 0 {
		return fmt.Errorf("%w: dim=%d inputs=%d outputs=%d", ErrManifest, m.Dim, m.Inputs, m.Outputs)
	}
	if len(m.Counts) != m.Outputs {
		return fmt.Errorf("%w: %d counts for %d outputs", ErrManifest, len(m.Counts), m.Outputs)
	}
	return nil
}

// WriteManifest encodes m as indented JSON.
func WriteManifest(w io.Writer, m Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ReadManifest decodes and validates a manifest.
func ReadManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if err := m.validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Snapshot is an export directory held in memory.
type Snapshot struct {
	Manifest Manifest
	Input    tensor.Mat
	Output   tensor.Mat
}

// Save writes s to dir, creating it if needed.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := writeFile(filepath.Join(dir, InputFile), func(w io.Writer) error { return WriteVectors(w, &s.Input) }); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, OutputFile), func(w io.Writer) error { return WriteVectors(w, &s.Output) }); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, ManifestFile), func(w io.Writer) error { return WriteManifest(w, s.Manifest) })
}

// writeFile writes through a temporary file so a crash never leaves a
// truncated export behind.
func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := fill(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads an export directory and checks the matrices against the
// manifest.
func Load(dir string) (*Snapshot, error) {
	var s Snapshot
	if err := readFile(filepath.Join(dir, ManifestFile), func(r io.Reader) (err error) {
		s.Manifest, err = ReadManifest(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, InputFile), func(r io.Reader) (err error) {
		s.Input, err = ReadVectors(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, OutputFile), func(r io.Reader) (err error) {
		s.Output, err = ReadVectors(r)
		return err
	}); err != nil {
		return nil, err
	}

	m := s.Manifest
	if s.Input.R != m.Inputs || s.Input.C != m.Dim {
		return nil, fmt.Errorf("%w: input is %dx%d, manifest says %dx%d", ErrManifest, s.Input.R, s.Input.C, m.Inputs, m.Dim)
	}
	if s.Output.R != m.Outputs || s.Output.C != m.Dim {
		return nil, fmt.Errorf("%w: output is %dx%d, manifest says %dx%d", ErrManifest, s.Output.R, s.Output.C, m.Outputs, m.Dim)
	}
	return &s, nil
}

func readFile(path string, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// Model rebuilds an inference model over the snapshot's matrices.
func (s *Snapshot) Model() (*model.Model, error) {
	m := s.Manifest
	neg := max(m.Neg, 1)
	loss, err := model.NewLoss(m.Loss, &s.Output, m.Counts, neg,
		// Inference never samples negatives.
		model.WithNegativeTableSize(len(m.Counts)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	return model.New(&s.Input, &s.Output, loss, m.NormalizeGradient), nil
}

// FromResult captures a finished run as a Snapshot sharing its matrices.
func FromResult(runID string, cfg train.Config, res *train.Result) *Snapshot {
	return &Snapshot{
		Manifest: NewManifest(runID, cfg, res),
		Input:    *res.Model.Input(),
		Output:   *res.Model.Output(),
	}
}
