package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/keagan/fragcannon/internal/highlight"
	"github.com/keagan/fragcannon/pkg/util"
)

// IntervalRecord is the serialized form of one cut interval.
type IntervalRecord struct {
	StartSeconds float64 `json:"timestamp_start_seconds"`
	EndSeconds   float64 `json:"timestamp_end_seconds"`
	Description  string  `json:"description"`
}

// RunMetadata is the persisted record of a completed run. The watcher
// consults these to avoid reprocessing files it already handled.
type RunMetadata struct {
	RunID          string           `json:"run_id"`
	SourcePath     string           `json:"source_path"`
	SourceDuration float64          `json:"source_duration_seconds"`
	Title          string           `json:"title"`
	Intervals      []IntervalRecord `json:"intervals"`
	Compilation    string           `json:"compilation"`
	Shorts         []string         `json:"shorts,omitempty"`
	FailedBatches  int              `json:"failed_batches"`
	CreatedAt      time.Time        `json:"created_at"`
}

// newRunMetadata flattens a Result for persistence.
func newRunMetadata(res *Result) RunMetadata {
	meta := RunMetadata{
		RunID:         res.RunID,
		Title:         res.Title,
		Compilation:   res.Compilation,
		Shorts:        append([]string(nil), res.Shorts...),
		FailedBatches: len(res.BatchFailures),
		CreatedAt:     res.FinishedAt,
	}
	if res.Source != nil {
		meta.SourcePath = res.Source.FilePath
		meta.SourceDuration = res.Source.Duration.Seconds()
	}
	for _, iv := range res.Intervals {
		meta.Intervals = append(meta.Intervals, IntervalRecord{
			StartSeconds: iv.Start.Seconds(),
			EndSeconds:   iv.End.Seconds(),
			Description:  iv.Description,
		})
	}
	return meta
}

// CutIntervals reconstructs the typed cut list.
func (m RunMetadata) CutIntervals() []highlight.CutInterval {
	out := make([]highlight.CutInterval, len(m.Intervals))
	for i, r := range m.Intervals {
		out[i] = highlight.CutInterval{
			Start:       time.Duration(r.StartSeconds * float64(time.Second)),
			End:         time.Duration(r.EndSeconds * float64(time.Second)),
			Description: r.Description,
		}
	}
	return out
}

// Write persists the metadata as <run_id>.json under dir.
func (m RunMetadata) Write(dir string) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.RunID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadMetadata reads one metadata file.
func LoadMetadata(path string) (RunMetadata, error) {
	var m RunMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

// FindBySource reports whether any metadata file in dir records a run
// over the given source path. Unreadable entries are skipped.
func FindBySource(dir, sourcePath string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		m, err := LoadMetadata(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		recorded, err := filepath.Abs(m.SourcePath)
		if err != nil {
			recorded = m.SourcePath
		}
		if recorded == abs {
			return true, nil
		}
	}
	return false, nil
}
