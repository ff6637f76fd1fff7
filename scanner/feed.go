package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/michaelpento.lv/flashplanner/types"
	"go.uber.org/zap"
)

// Feed produces market snapshots worth evaluating
type Feed interface {
	Poll(ctx context.Context) ([]types.Opportunity, error)
}

const rejectedSuffix = ".rejected"

// SpoolFeed consumes *.json files dropped into a directory, in name order.
// A file holds {"opportunity_id", "snapshot"} or a bare snapshot object.
type SpoolFeed struct {
	dir    string
	logger *zap.Logger
}

func NewSpoolFeed(dir string, logger *zap.Logger) *SpoolFeed {
	return &SpoolFeed{dir: dir, logger: logger}
}

// Poll returns every pending snapshot and removes the files it consumed.
// Unparseable files are renamed with a .rejected suffix.
func (f *SpoolFeed) Poll(ctx context.Context) ([]types.Opportunity, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}

	var out []types.Opportunity
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			f.logger.Warn("failed to read spool file", zap.String("path", path), zap.Error(err))
			continue
		}

		opp, err := parseSpoolFile(raw)
		if err != nil {
			f.logger.Warn("rejecting spool file", zap.String("path", path), zap.Error(err))
			if err := os.Rename(path, path+rejectedSuffix); err != nil {
				f.logger.Error("failed to move rejected spool file", zap.String("path", path), zap.Error(err))
			}
			continue
		}

		if err := os.Remove(path); err != nil {
			f.logger.Error("failed to remove spool file", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}

func parseSpoolFile(raw []byte) (types.Opportunity, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return types.Opportunity{}, fmt.Errorf("not a JSON object")
	}

	var envelope struct {
		OpportunityID string          `json:"opportunity_id"`
		Snapshot      json.RawMessage `json:"snapshot"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Snapshot) > 0 {
		return types.Opportunity{ID: envelope.OpportunityID, Snapshot: envelope.Snapshot}, nil
	}
	return types.Opportunity{Snapshot: json.RawMessage(raw)}, nil
}
