package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadIndices(t *testing.T) {
	path := writeFile(t, "states.txt", `
# spectral regions
1 2 3
4 5   # second group
10
`)
	states, err := ReadIndices(path)
	if err != nil {
		t.Fatalf("ReadIndices failed: %v", err)
	}
	want := [][]int{{0, 1, 2}, {3, 4}, {9}}
	if len(states) != len(want) {
		t.Fatalf("got %d groups, want %d", len(states), len(want))
	}
	for g := range want {
		if len(states[g]) != len(want[g]) {
			t.Fatalf("group %d has %d indices, want %d", g, len(states[g]), len(want[g]))
		}
		for k := range want[g] {
			if states[g][k] != want[g][k] {
				t.Errorf("states[%d][%d] = %d, want %d", g, k, states[g][k], want[g][k])
			}
		}
	}
}

func TestReadIndicesRejectsBadContent(t *testing.T) {
	for name, content := range map[string]string{
		"non-integer":  "1 2 x",
		"non-positive": "0 1 2",
		"empty":        "# only comments\n",
	} {
		path := writeFile(t, "bad.txt", content)
		if _, err := ReadIndices(path); !errors.Is(err, ErrIndexFormat) {
			t.Errorf("%s: got %v, want ErrIndexFormat", name, err)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "x.csv", "1.5,2,3\n-0.5,0,4.25\n")
	X, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	r, c := X.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("matrix is %dx%d, want 2x3", r, c)
	}
	if X.At(1, 2) != 4.25 {
		t.Errorf("X(1,2) = %v, want 4.25", X.At(1, 2))
	}

	ragged := writeFile(t, "ragged.csv", "1,2\n3\n")
	if _, err := LoadCSV(ragged); err == nil {
		t.Error("ragged CSV accepted")
	}
}

func TestLoadRunConfig(t *testing.T) {
	path := writeFile(t, "run.yaml", `
x_path: data/x.csv
y_path: data/y.csv
indices_path: data/states.txt
lvs: [0, 1, 2, 3]
gammas: [0, 0.5, 1]
blocks: 7
alpha: 0.8
seed: 42
workers: 4
`)
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}
	if cfg.Blocks != 7 || cfg.Alpha != 0.8 || cfg.Seed != 42 || cfg.Workers != 4 {
		t.Errorf("scalar fields not parsed: %+v", cfg)
	}
	if len(cfg.LVs) != 4 || cfg.LVs[3] != 3 {
		t.Errorf("lvs not parsed: %v", cfg.LVs)
	}
	if len(cfg.Gammas) != 3 || cfg.Gammas[1] != 0.5 {
		t.Errorf("gammas not parsed: %v", cfg.Gammas)
	}
	if cfg.XPath != "data/x.csv" {
		t.Errorf("x_path = %q", cfg.XPath)
	}
}
