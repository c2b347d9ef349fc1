// Package corpus reads training data that is already expressed as integer
// ids.  Each line is one example; tokens written as __label__<n> are labels
// and every other token is a word id.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LabelPrefix marks label tokens.
const LabelPrefix = "__label__"

// ErrParse is wrapped by every malformed-input error.
var ErrParse = errors.New("corpus: parse error")

// ErrIDRange is returned when a word or label id is above the vocabulary cap.
var ErrIDRange = errors.New("corpus: id out of range")

// DefaultMaxID caps ids read by Parse and Load.  Count tables are dense, so
// the largest id decides how much memory they take.
const DefaultMaxID int32 = 1<<24 - 1

// Example is one parsed line.
type Example struct {
	Words  []int32
	Labels []int32
}

// Tokens counts every token of the line, labels included.
func (e Example) Tokens() int64 {
	return int64(len(e.Words) + len(e.Labels))
}

// Corpus is a fully parsed training file plus the frequencies the losses
// need.  Ids are dense: NWords is the largest word id plus one.
type Corpus struct {
	Examples    []Example
	NWords      int
	NLabels     int
	WordCounts  []int64
	LabelCounts []int64
	NTokens     int64
}

// ParseLine parses a single line.  Blank lines yield an empty example.
func ParseLine(line string) (Example, error) {
	var ex Example
	for _, tok := range strings.Fields(line) {
		if rest, ok := strings.CutPrefix(tok, LabelPrefix); ok {
			id, err := parseID(rest)
			if err != nil {
				return Example{}, fmt.Errorf("%w: label %q: %v", ErrParse, tok, err)
			}
			ex.Labels = append(ex.Labels, id)
			continue
		}
		id, err := parseID(tok)
		if err != nil {
			return Example{}, fmt.Errorf("%w: token %q: %v", ErrParse, tok, err)
		}
		ex.Words = append(ex.Words, id)
	}
	return ex, nil
}

func parseID(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative id %d", v)
	}
	return int32(v), nil
}

// Parse builds a Corpus from raw file contents with ids capped at
// DefaultMaxID.  Lines without any token are skipped.
func Parse(data []byte) (*Corpus, error) {
	return ParseLimit(data, DefaultMaxID)
}

// ParseLimit is Parse with an explicit id cap.
func ParseLimit(data []byte, maxID int32) (*Corpus, error) {
	c := &Corpus{}
	lineNo := 0
	for len(data) > 0 {
		lineNo++
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		ex, err := ParseLine(string(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ex.Tokens() == 0 {
			continue
		}
		if err := checkIDs(ex, maxID); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		c.add(ex)
	}
	return c, nil
}

func checkIDs(ex Example, maxID int32) error {
	for _, id := range ex.Words {
		if id > maxID {
			return fmt.Errorf("%w: word id %d above max id %d", ErrIDRange, id, maxID)
		}
	}
	for _, id := range ex.Labels {
		if id > maxID {
			return fmt.Errorf("%w: label id %d above max id %d", ErrIDRange, id, maxID)
		}
	}
	return nil
}

func (c *Corpus) add(ex Example) {
	for _, id := range ex.Words {
		c.WordCounts = grow(c.WordCounts, int(id)+1)
		c.WordCounts[id]++
	}
	for _, id := range ex.Labels {
		c.LabelCounts = grow(c.LabelCounts, int(id)+1)
		c.LabelCounts[id]++
	}
	c.NWords = len(c.WordCounts)
	c.NLabels = len(c.LabelCounts)
	c.NTokens += ex.Tokens()
	c.Examples = append(c.Examples, ex)
}

func grow(s []int64, n int) []int64 {
	if len(s) >= n {
		return s
	}
	return append(s, make([]int64, n-len(s))...)
}

// Offset returns where worker w of n starts reading so that workers begin
// on disjoint slices of the corpus.
func (c *Corpus) Offset(w, n int) int {
	if n <= 0 || len(c.Examples) == 0 {
		return 0
	}
	return int(int64(w) * int64(len(c.Examples)) / int64(n))
}

// Validate checks that every id fits the given matrix sizes.  It is used
// when scoring a corpus against an already trained model.
func (c *Corpus) Validate(nwords, nlabels int) error {
	if c.NWords > nwords {
		return fmt.Errorf("%w: word id %d outside vocabulary of %d", ErrParse, c.NWords-1, nwords)
	}
	if c.NLabels > nlabels {
		return fmt.Errorf("%w: label id %d outside %d labels", ErrParse, c.NLabels-1, nlabels)
	}
	return nil
}
