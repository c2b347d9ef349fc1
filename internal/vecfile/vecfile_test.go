package vecfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/samcharles93/fastvec/internal/model"
	"github.com/samcharles93/fastvec/internal/tensor"
	"github.com/samcharles93/fastvec/internal/train"
)

func TestVectorsRoundTripExactly(t *testing.T) {
	t.Parallel()
	m := tensor.NewMat(3, 4)
	tensor.FillUniform(&m, 0.25, 3)
	m.Row(1)[2] = 1e-7

	var buf bytes.Buffer
	if err := WriteVectors(&buf, &m); err != nil {
		t.Fatalf("WriteVectors: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "3 4\n0 ") {
		t.Fatalf("unexpected layout:\n%s", buf.String())
	}
	got, err := ReadVectors(&buf)
	if err != nil {
		t.Fatalf("ReadVectors: %v", err)
	}
	if got.R != 3 || got.C != 4 || !slices.Equal(got.Data, m.Data) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got.Data, m.Data)
	}
}

func TestReadVectorsAcceptsAnyRowOrder(t *testing.T) {
	t.Parallel()
	got, err := ReadVectors(strings.NewReader("2 2\n1 3 4\n\n0 1 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Data, []float32{1, 2, 3, 4}) {
		t.Fatalf("data = %v", got.Data)
	}
}

func TestReadVectorsErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"empty":        "",
		"header":       "two 2\n",
		"zero cols":    "1 0\n",
		"short row":    "1 2\n0 1\n",
		"bad id":       "1 2\n7 1 2\n",
		"duplicate id": "2 1\n0 1\n0 2\n",
		"missing row":  "2 1\n0 1\n",
		"bad value":    "1 1\n0 x\n",
	}
	for name, in := range cases {
		if _, err := ReadVectors(strings.NewReader(in)); !errors.Is(err, ErrFormat) {
			t.Errorf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func testSnapshot(kind model.Kind) *Snapshot {
	in := tensor.NewMatFromData(3, 2, []float32{1, 0, 0, 1, 0.5, 0.5})
	out := tensor.NewMatFromData(2, 2, []float32{4, -4, 0, 4})
	return &Snapshot{
		Manifest: Manifest{
			RunID:   NewRunID(),
			Mode:    train.ModeSupervised,
			Loss:    kind,
			Dim:     2,
			Neg:     1,
			Inputs:  3,
			Outputs: 2,
			Counts:  []int64{5, 3},
		},
		Input:  in,
		Output: out,
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "export")
	snap := testSnapshot(model.KindHierarchicalSoftmax)
	if err := Save(dir, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("export dir holds %d entries, want 3", len(entries))
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Manifest.RunID != snap.Manifest.RunID || got.Manifest.Loss != model.KindHierarchicalSoftmax {
		t.Fatalf("manifest = %+v", got.Manifest)
	}
	if !slices.Equal(got.Input.Data, snap.Input.Data) || !slices.Equal(got.Output.Data, snap.Output.Data) {
		t.Fatal("matrices changed across save/load")
	}
}

func TestLoadRejectsMismatchedManifest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	snap := testSnapshot(model.KindSoftmax)
	if err := Save(dir, snap); err != nil {
		t.Fatal(err)
	}
	snap.Manifest.Dim = 3
	f, err := os.Create(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteManifest(f, snap.Manifest); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := Load(dir); !errors.Is(err, ErrManifest) {
		t.Fatalf("expected ErrManifest, got %v", err)
	}
}

func TestReadManifestValidates(t *testing.T) {
	t.Parallel()
	for name, in := range map[string]string{
		"syntax": "{",
		"loss":   `{"loss":"hinge","dim":2,"inputs":1,"outputs":1,"counts":[1]}`,
		"counts": `{"loss":"ns","dim":2,"inputs":1,"outputs":2,"counts":[1]}`,
		"dim":    `{"loss":"ns","dim":0,"inputs":1,"outputs":1,"counts":[1]}`,
	} {
		if _, err := ReadManifest(strings.NewReader(in)); !errors.Is(err, ErrManifest) {
			t.Errorf("%s: expected ErrManifest, got %v", name, err)
		}
	}
}

func TestSnapshotModelPredicts(t *testing.T) {
	t.Parallel()
	for _, kind := range []model.Kind{model.KindNegativeSampling, model.KindHierarchicalSoftmax, model.KindSoftmax, model.KindOneVsAll} {
		m, err := testSnapshot(kind).Model()
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		st := m.NewState(0)
		var preds model.Predictions
		if err := m.Predict([]int32{1}, 1, 0, &preds, st); err != nil {
			t.Fatal(err)
		}
		if len(preds) != 1 || preds[0].ID != 1 {
			t.Fatalf("%s: predictions %v, want label 1", kind, preds)
		}
	}
}
