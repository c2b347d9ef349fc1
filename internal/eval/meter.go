// Package eval scores a supervised model against a labelled corpus.
package eval

import (
	"math"
	"slices"

	"github.com/samcharles93/fastvec/internal/corpus"
	"github.com/samcharles93/fastvec/internal/model"
)

type counts struct {
	gold          int64
	predicted     int64
	predictedGold int64
}

func (c counts) precision() float64 { return ratio(c.predictedGold, c.predicted) }
func (c counts) recall() float64    { return ratio(c.predictedGold, c.gold) }

func ratio(a, b int64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return float64(a) / float64(b)
}

// Meter accumulates precision and recall over predicted label sets.
type Meter struct {
	examples int64
	total    counts
	labels   map[int32]*counts
}

func NewMeter() *Meter {
	return &Meter{labels: make(map[int32]*counts)}
}

func (m *Meter) label(id int32) *counts {
	c, ok := m.labels[id]
	if !ok {
		c = &counts{}
		m.labels[id] = c
	}
	return c
}

// Log records one example: the ranked predictions against its gold labels.
func (m *Meter) Log(gold []int32, preds model.Predictions) {
	m.examples++
	m.total.gold += int64(len(gold))
	m.total.predicted += int64(len(preds))
	for _, p := range preds {
		m.label(p.ID).predicted++
		if slices.Contains(gold, p.ID) {
			m.label(p.ID).predictedGold++
			m.total.predictedGold++
		}
	}
	for _, g := range gold {
		m.label(g).gold++
	}
}

func (m *Meter) Examples() int64 { return m.examples }

// Precision is correct predictions over all predictions.  NaN when nothing
// was predicted.
func (m *Meter) Precision() float64 { return m.total.precision() }

// Recall is correct predictions over all gold labels.
func (m *Meter) Recall() float64 { return m.total.recall() }

// F1 is the harmonic mean of Precision and Recall.
func (m *Meter) F1() float64 { return f1(m.Precision(), m.Recall()) }

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// LabelScore holds the metrics of a single label.
type LabelScore struct {
	Label     int32   `json:"label"`
	Gold      int64   `json:"gold"`
	Predicted int64   `json:"predicted"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// PerLabel returns the metrics of every label seen, ordered by id.
func (m *Meter) PerLabel() []LabelScore {
	ids := make([]int32, 0, len(m.labels))
	for id := range m.labels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]LabelScore, 0, len(ids))
	for _, id := range ids {
		c := m.labels[id]
		p, r := c.precision(), c.recall()
		out = append(out, LabelScore{
			Label:     id,
			Gold:      c.gold,
			Predicted: c.predicted,
			Precision: p,
			Recall:    r,
			F1:        f1(p, r),
		})
	}
	return out
}

// Evaluate predicts the top k labels of every labelled example of c with m
// and returns the filled meter.  Examples without words or labels are
// skipped.
func Evaluate(m *model.Model, c *corpus.Corpus, k int, threshold float32) (*Meter, error) {
	if err := c.Validate(m.Input().R, m.Output().R); err != nil {
		return nil, err
	}
	meter := NewMeter()
	st := m.NewState(0)
	var preds model.Predictions
	for _, ex := range c.Examples {
		if len(ex.Words) == 0 || len(ex.Labels) == 0 {
			continue
		}
		if err := m.Predict(ex.Words, k, threshold, &preds, st); err != nil {
			return nil, err
		}
		meter.Log(ex.Labels, preds)
	}
	return meter, nil
}
