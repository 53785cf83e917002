// Package transfer reads and writes the portable export document. Files
// ending in .zst are zstd-compressed.
package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

const op = "ImportData"

var (
	habitFields = []string{"id", "title", "type", "targetCount", "increments", "frequency", "createdAt", "archived", "logs"}
	entryFields = []string{"value", "completed", "updatedAt"}
)

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Decode parses an export document. Fields outside the habit and log entry
// schema are dropped and logged. A document without a habits array is a
// validation error.
func Decode(r io.Reader) (models.Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return models.Snapshot{}, errors.Validation(op, "invalid JSON: %v", err)
	}

	snap := models.Snapshot{Version: constants.ExportVersion}
	if raw, ok := doc["version"]; ok {
		if err := json.Unmarshal(raw, &snap.Version); err != nil {
			return models.Snapshot{}, errors.Validation(op, "version must be a number")
		}
		if snap.Version > constants.ExportVersion {
			return models.Snapshot{}, errors.Validation(op, "unsupported export version %d", snap.Version)
		}
	}
	if raw, ok := doc["exportedAt"]; ok {
		if err := json.Unmarshal(raw, &snap.ExportedAt); err != nil {
			return models.Snapshot{}, errors.Validation(op, "exportedAt: %v", err)
		}
	}

	raw, ok := doc["habits"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return models.Snapshot{}, errors.Validation(op, "payload has no habits array")
	}
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return models.Snapshot{}, errors.Validation(op, "habits must be an array of objects")
	}

	snap.Habits = make([]models.Habit, 0, len(records))
	for i, rec := range records {
		h, dropped, err := decodeHabit(rec)
		if err != nil {
			return models.Snapshot{}, errors.Validation(op, "habit %d: %v", i+1, err)
		}
		if len(dropped) > 0 {
			logger.Warn("dropped unrecognized import fields", "habit", h.ID, "fields", strings.Join(dropped, ","))
		}
		snap.Habits = append(snap.Habits, h)
	}
	return snap, nil
}

// decodeHabit keeps only recognized fields of rec and returns the names of
// the ones it dropped.
func decodeHabit(rec map[string]json.RawMessage) (models.Habit, []string, error) {
	var dropped []string
	kept := make(map[string]json.RawMessage, len(habitFields))
	for key, value := range rec {
		if !slices.Contains(habitFields, key) {
			dropped = append(dropped, key)
			continue
		}
		kept[key] = value
	}

	if raw, ok := kept["logs"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		var logs map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &logs); err != nil {
			return models.Habit{}, nil, fmt.Errorf("logs must be an object of entries")
		}
		for periodKey, entry := range logs {
			for field := range entry {
				if !slices.Contains(entryFields, field) {
					delete(entry, field)
					dropped = append(dropped, "logs."+periodKey+"."+field)
				}
			}
		}
		filtered, err := json.Marshal(logs)
		if err != nil {
			return models.Habit{}, nil, err
		}
		kept["logs"] = filtered
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return models.Habit{}, nil, err
	}
	var h models.Habit
	if err := json.Unmarshal(data, &h); err != nil {
		return models.Habit{}, nil, err
	}
	if h.Logs == nil {
		h.Logs = models.Logs{}
	}
	slices.Sort(dropped)
	return h, dropped, nil
}

// ReadFile decodes the export at path.
func ReadFile(path string) (models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if compressed(path) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return models.Snapshot{}, errors.Validation(op, "invalid zstd data: %v", err)
		}
	}
	return Decode(bytes.NewReader(data))
}

// WriteFile writes snap to path, readable only by the owner.
func WriteFile(path string, snap models.Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return err
	}
	data := buf.Bytes()
	if compressed(path) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		data = enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		enc.Close()
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
