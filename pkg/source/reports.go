package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ReportDir serves keyword reports exported by the keyword-metrics provider
// as JSON files named after the keyword slug.
type ReportDir struct {
	dir string
}

// NewReportDir creates a report source rooted at dir.
func NewReportDir(dir string) *ReportDir {
	return &ReportDir{dir: dir}
}

// Slug converts a keyword to its report file stem.
func Slug(keyword string) string {
	return strings.ReplaceAll(FormatNicheName(keyword), " ", "-")
}

func (d *ReportDir) KeywordReport(ctx context.Context, keyword string) (*KeywordReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.dir, Slug(keyword)+".json")
	report, err := ReadReportFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("keyword report %q: %w", keyword, ErrNoData)
	}
	return report, err
}

// ReadReportFile decodes a single keyword report from path.
func ReadReportFile(path string) (*KeywordReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var report KeywordReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w: %v", path, ErrFormat, err)
	}
	if report.Info.Keyword == "" {
		return nil, fmt.Errorf("decode report %s: %w: missing info.keyword", path, ErrFormat)
	}
	return &report, nil
}
