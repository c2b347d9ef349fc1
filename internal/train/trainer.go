// Package train drives Hogwild SGD over a corpus: a fixed set of
// goroutines, each with its own model.State, all writing to the same input
// and output matrices without synchronisation.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samcharles93/fastvec/internal/corpus"
	"github.com/samcharles93/fastvec/internal/logger"
	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/tensor"
)

var ErrEmptyCorpus = errors.New("train: corpus has no usable tokens")

// Result is what a finished run hands back.
type Result struct {
	Model    *model.Model
	Counts   []int64
	Loss     float32
	Examples int64
	Tokens   int64
	Elapsed  time.Duration
}

// WordsPerSecPerThread is the throughput figure reported by the progress line.
func (r *Result) WordsPerSecPerThread(threads int) float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 || threads <= 0 {
		return 0
	}
	return float64(r.Tokens) / secs / float64(threads)
}

// Trainer owns the shared matrices for one training run.
type Trainer struct {
	cfg    Config
	corpus *corpus.Corpus
	log    logger.Logger

	input  tensor.Mat
	output tensor.Mat
	counts []int64
	model  *model.Model

	tokenCount atomic.Int64
	examples   atomic.Int64
	loss       atomic.Uint32 // float32 bits of worker 0's mean loss
}

// New validates cfg against c and allocates the matrices.  The input matrix
// is drawn uniformly from ±1/dim; the output matrix starts at zero.
func New(cfg Config, c *corpus.Corpus, log logger.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.NTokens == 0 || c.NWords == 0 {
		return nil, ErrEmptyCorpus
	}
	if log == nil {
		log = logger.Discard()
	}

	t := &Trainer{cfg: cfg, corpus: c, log: log.With("mode", string(cfg.Mode), "loss", string(cfg.Loss))}

	osz := c.NWords
	t.counts = c.WordCounts
	if cfg.Mode == ModeSupervised {
		if c.NLabels == 0 {
			return nil, fmt.Errorf("%w: supervised mode needs __label__ tokens", ErrEmptyCorpus)
		}
		osz = c.NLabels
		t.counts = c.LabelCounts
	}

	t.input = tensor.NewMat(c.NWords, cfg.Dim)
	tensor.FillUniform(&t.input, 1/float64(cfg.Dim), cfg.Seed)
	t.output = tensor.NewMat(osz, cfg.Dim)

	loss, err := model.NewLoss(cfg.Loss, &t.output, t.counts, cfg.Neg,
		model.WithNegativeTableSize(cfg.NegativeTableSize),
		model.WithNegativeTableSeed(cfg.Seed),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	t.model = model.New(&t.input, &t.output, loss, cfg.NormalizeGradient)
	return t, nil
}

// Model exposes the model being trained.  Its matrices change while Run is
// in progress.
func (t *Trainer) Model() *model.Model { return t.model }

// Progress is the fraction of the token budget consumed so far.
func (t *Trainer) Progress() float64 {
	total := float64(t.cfg.Epoch) * float64(t.corpus.NTokens)
	return min(float64(t.tokenCount.Load())/total, 1)
}

// Loss is worker 0's most recently published mean loss.
func (t *Trainer) Loss() float32 {
	return math.Float32frombits(t.loss.Load())
}

// Run trains until Epoch passes over the corpus have been consumed or ctx
// is cancelled.  Cancellation is observed between examples only.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	t.log.Info("training started",
		"threads", t.cfg.Threads,
		"dim", t.cfg.Dim,
		"epoch", t.cfg.Epoch,
		"examples", len(t.corpus.Examples),
		"tokens", t.corpus.NTokens,
		"outputs", t.output.R,
	)
	t.loss.Store(math.Float32bits(float32(math.NaN())))
	start := time.Now()

	stopProgress := make(chan struct{})
	var progressDone sync.WaitGroup
	progressDone.Add(1)
	go func() {
		defer progressDone.Done()
		t.reportProgress(start, stopProgress)
	}()

	errs := make([]error, t.cfg.Threads)
	var wg sync.WaitGroup
	for id := range t.cfg.Threads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[id] = t.worker(ctx, id)
		}()
	}
	wg.Wait()
	close(stopProgress)
	progressDone.Wait()

	res := &Result{
		Model:    t.model,
		Counts:   t.counts,
		Loss:     t.Loss(),
		Examples: t.examples.Load(),
		Tokens:   t.tokenCount.Load(),
		Elapsed:  time.Since(start),
	}
	if err := errors.Join(errs...); err != nil {
		t.log.Warn("training stopped early", "progress", t.Progress(), "err", err)
		return res, err
	}
	t.log.Info("training finished",
		"loss", res.Loss,
		"elapsed", res.Elapsed,
		"words_per_sec_per_thread", res.WordsPerSecPerThread(t.cfg.Threads),
	)
	return res, nil
}

func (t *Trainer) worker(ctx context.Context, id int) error {
	st := t.model.NewState(t.cfg.Seed + uint64(id))
	examples := t.corpus.Examples
	total := int64(t.cfg.Epoch) * t.corpus.NTokens
	pos := t.corpus.Offset(id, t.cfg.Threads)
	done := ctx.Done()

	var (
		local   int64
		scratch []int32
	)
	flush := func() {
		t.tokenCount.Add(local)
		local = 0
		if id == 0 {
			t.loss.Store(math.Float32bits(st.Loss()))
		}
	}
	defer func() {
		t.examples.Add(st.Examples())
	}()

	for t.tokenCount.Load() < total {
		progress := float64(t.tokenCount.Load()) / float64(total)
		lr := float32(t.cfg.LR * (1 - progress))

		ex := examples[pos]
		pos = (pos + 1) % len(examples)
		local += ex.Tokens()

		switch t.cfg.Mode {
		case ModeSupervised:
			t.supervised(st, lr, ex)
		case ModeCBOW:
			scratch = t.cbow(st, lr, ex.Words, scratch)
		case ModeSkipgram:
			t.skipgram(st, lr, ex.Words)
		}

		if local > t.cfg.LRUpdateRate {
			flush()
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
	}
	flush()
	return nil
}

func (t *Trainer) supervised(st *model.State, lr float32, ex corpus.Example) {
	if len(ex.Labels) == 0 || len(ex.Words) == 0 {
		return
	}
	if t.cfg.Loss == model.KindOneVsAll {
		t.model.Update(ex.Words, ex.Labels, model.AllLabelsAsTarget, lr, st)
		return
	}
	i := st.RNG.IntN(len(ex.Labels))
	t.model.Update(ex.Words, ex.Labels, i, lr, st)
}

// cbow predicts each word from the mean of a random-width window around it.
func (t *Trainer) cbow(st *model.State, lr float32, line []int32, bow []int32) []int32 {
	for w := range line {
		b := 1 + st.RNG.IntN(t.cfg.WS)
		bow = bow[:0]
		for c := -b; c <= b; c++ {
			if c != 0 && w+c >= 0 && w+c < len(line) {
				bow = append(bow, line[w+c])
			}
		}
		t.model.Update(bow, line, w, lr, st)
	}
	return bow
}

// skipgram predicts every word of a random-width window from the centre word.
func (t *Trainer) skipgram(st *model.State, lr float32, line []int32) {
	for w := range line {
		b := 1 + st.RNG.IntN(t.cfg.WS)
		centre := line[w : w+1]
		for c := -b; c <= b; c++ {
			if c != 0 && w+c >= 0 && w+c < len(line) {
				t.model.Update(centre, line, w+c, lr, st)
			}
		}
	}
}

func (t *Trainer) reportProgress(start time.Time, stop <-chan struct{}) {
	if t.cfg.ProgressInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.cfg.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			progress := t.Progress()
			wst := float64(t.tokenCount.Load()) / elapsed.Seconds() / float64(t.cfg.Threads)
			var eta time.Duration
			if progress > 0 {
				eta = time.Duration(float64(elapsed) * (1 - progress) / progress)
			}
			t.log.Info("progress",
				"pct", math.Round(progress*1000)/10,
				"words_per_sec_per_thread", math.Round(wst),
				"lr", t.cfg.LR*(1-progress),
				"loss", t.Loss(),
				"eta", eta.Round(time.Second),
			)
		}
	}
}
