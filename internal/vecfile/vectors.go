// Package vecfile exports trained matrices as text vectors and reads them
// back for inference.
//
// A vector file starts with a "rows cols" header followed by one line per
// row: the row id and then cols space-separated values.
package vecfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samcharles93/fastvec/internal/tensor"
)

var ErrFormat = errors.New("vecfile: malformed vector file")

// WriteVectors writes every row of m.  Values round-trip exactly.
func WriteVectors(w io.Writer, m *tensor.Mat) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := fmt.Fprintf(bw, "%d %d\n", m.R, m.C); err != nil {
		return err
	}
	var line []byte
	for i := range m.R {
		line = strconv.AppendInt(line[:0], int64(i), 10)
		for _, v := range m.Row(i) {
			line = append(line, ' ')
			line = strconv.AppendFloat(line, float64(v), 'g', -1, 32)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadVectors parses a file written by WriteVectors.  Rows may appear in any
// order but each id must appear exactly once.
func ReadVectors(r io.Reader) (tensor.Mat, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<26)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return tensor.Mat{}, err
		}
		return tensor.Mat{}, fmt.Errorf("%w: missing header", ErrFormat)
	}
	var rows, cols int
	if _, err := fmt.Sscanf(sc.Text(), "%d %d", &rows, &cols); err != nil || rows < 0 || cols <= 0 {
		return tensor.Mat{}, fmt.Errorf("%w: bad header %q", ErrFormat, sc.Text())
	}

	m := tensor.NewMat(rows, cols)
	seen := make([]bool, rows)
	lineNo := 1
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != cols+1 {
			return tensor.Mat{}, fmt.Errorf("%w: line %d has %d values, want %d", ErrFormat, lineNo, len(fields)-1, cols)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 0 || id >= rows {
			return tensor.Mat{}, fmt.Errorf("%w: line %d: bad row id %q", ErrFormat, lineNo, fields[0])
		}
		if seen[id] {
			return tensor.Mat{}, fmt.Errorf("%w: line %d: duplicate row %d", ErrFormat, lineNo, id)
		}
		seen[id] = true
		row := m.Row(id)
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return tensor.Mat{}, fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
			}
			row[j] = float32(v)
		}
	}
	if err := sc.Err(); err != nil {
		return tensor.Mat{}, err
	}
	for id, ok := range seen {
		if !ok {
			return tensor.Mat{}, fmt.Errorf("%w: row %d missing", ErrFormat, id)
		}
	}
	return m, nil
}
