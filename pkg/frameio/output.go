package frameio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"iclcontours/internal/models"
)

// SummaryFile is the name of the per-run summary written next to the contours
const SummaryFile = "summary.json"

// ContourFileName returns the output file name of one isophote level
func ContourFileName(level float64) string {
	return fmt.Sprintf("icontour_%.1f.json", level)
}

// LevelSummary describes one written contour set
type LevelSummary struct {
	Level     float64 `json:"level"`
	Threshold float64 `json:"threshold"`
	Contours  int     `json:"contours"`
	Closed    int     `json:"closed"`
	File      string  `json:"file"`
}

// Summary is the run metadata written to summary.json
type Summary struct {
	RunID      string         `json:"run_id"`
	Source     string         `json:"source,omitempty"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	ZeroPoint  float64        `json:"zero_point"`
	Sources    int            `json:"sources"`
	Masked     int            `json:"masked_pixels"`
	Degenerate bool           `json:"degenerate_mask"`
	Levels     []LevelSummary `json:"levels"`
}

// WriteContourSets writes one JSON file per contour set into dir and returns
// the paths in set order. Levels that round to the same file name are
// rejected before anything is written.
func WriteContourSets(dir string, sets []models.ContourSet) ([]string, error) {
	seen := make(map[string]float64, len(sets))
	for _, set := range sets {
		name := ContourFileName(set.Level)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("levels %v and %v both map to %s", prev, set.Level, name)
		}
		seen[name] = set.Level
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(sets))
	for _, set := range sets {
		path := filepath.Join(dir, ContourFileName(set.Level))
		if err := writeJSON(path, set); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NewSummary builds the level table of a summary. files must be in set order.
func NewSummary(runID string, shape models.Shape, sets []models.ContourSet, files []string) *Summary {
	s := &Summary{
		RunID:  runID,
		Width:  shape.Width,
		Height: shape.Height,
		Levels: make([]LevelSummary, len(sets)),
	}
	for i, set := range sets {
		closed := 0
		for _, c := range set.Contours {
			if c.Closed {
				closed++
			}
		}
		s.Levels[i] = LevelSummary{
			Level:     set.Level,
			Threshold: set.Threshold,
			Contours:  len(set.Contours),
			Closed:    closed,
		}
		if i < len(files) {
			s.Levels[i].File = filepath.Base(files[i])
		}
	}
	return s
}

// WriteSummary writes summary.json into dir
func WriteSummary(dir string, s *Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeJSON(filepath.Join(dir, SummaryFile), s)
}

// ReadContourSet loads a contour set written by WriteContourSets
func ReadContourSet(path string) (*models.ContourSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contour file: %w", err)
	}
	var set models.ContourSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &set, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
