// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/slack-convert/pkg/types"
)

// exportPageSize is how many records each export query reads.
var exportPageSize = 1000

// ExportYAML writes matching dispatches to <dir>/export.yaml and returns
// the path written.
func (s *Store) ExportYAML(ctx context.Context, opts ListOptions) (string, error) {
	records, err := s.exportRecords(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes matching dispatches to <dir>/export.json and returns
// the path written.
func (s *Store) ExportJSON(ctx context.Context, opts ListOptions) (string, error) {
	records, err := s.exportRecords(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// exportRecords reads every matching record, one page at a time. The
// caller's Limit is ignored.
func (s *Store) exportRecords(ctx context.Context, opts ListOptions) ([]types.DispatchRecord, error) {
	records := []types.DispatchRecord{}
	opts.Limit = exportPageSize
	for opts.Offset = 0; ; opts.Offset += exportPageSize {
		page, err := s.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		records = append(records, page...)
		if len(page) < exportPageSize {
			return records, nil
		}
	}
}
