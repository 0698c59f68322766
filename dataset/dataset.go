// Package dataset holds the file-based collaborators around the numeric
// core: a reader for variable-group index files, a CSV matrix loader and a
// YAML run configuration. The fitting packages never touch the filesystem
// themselves.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"
)

var ErrIndexFormat = errors.New("dataset: malformed index file")

// ReadIndices parses a variable-grouping file: one group per line,
// whitespace-separated 1-based column indices, '#' starting a comment.
// Indices are converted to 0-based at this boundary; the numeric packages
// only ever see 0-based groups.
func ReadIndices(path string) ([][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: unable to open index file: %w", err)
	}
	defer f.Close()

	var states [][]int
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		group := make([]int, 0, len(fields))
		for _, field := range fields {
			idx, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not an integer", ErrIndexFormat, line, field)
			}
			if idx < 1 {
				return nil, fmt.Errorf("%w: line %d: index %d is not positive", ErrIndexFormat, line, idx)
			}
			group = append(group, idx-1)
		}
		states = append(states, group)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: reading index file: %w", err)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no groups defined", ErrIndexFormat)
	}
	return states, nil
}

// LoadCSV reads a headerless numeric CSV file into a dense matrix.
func LoadCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: unable to open data file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s is empty", path)
	}
	cols := len(records[0])
	data := make([]float64, 0, len(records)*cols)
	for i, rec := range records {
		if len(rec) != cols {
			return nil, fmt.Errorf("dataset: %s row %d has %d fields, want %d", path, i+1, len(rec), cols)
		}
		for _, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: %s row %d: %w", path, i+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(records), cols, data), nil
}

// RunConfig is the on-disk description of a cross-validation run.
type RunConfig struct {
	XPath       string    `yaml:"x_path"`
	YPath       string    `yaml:"y_path"`
	IndicesPath string    `yaml:"indices_path"`
	LVs         []int     `yaml:"lvs"`
	Gammas      []float64 `yaml:"gammas"`
	Blocks      int       `yaml:"blocks"`
	Alpha       float64   `yaml:"alpha"`
	Seed        int64     `yaml:"seed"`
	Workers     int       `yaml:"workers"`
}

// LoadRunConfig reads a YAML run configuration from disk.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: unable to read config file: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("dataset: unable to unmarshal config file: %w", err)
	}
	return &cfg, nil
}
