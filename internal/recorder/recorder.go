package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"StageScreener/internal/model"
)

// ErrNotFound is returned when no document exists for a key.
var ErrNotFound = errors.New("recorder: document not found")

// StageKey identifies one persisted result document.
type StageKey struct {
	Date      string
	Stage     model.StageName
	Frequency string
}

// ID formats the key as date/stage/frequency.
func (k StageKey) ID() string {
	return fmt.Sprintf("%s/%s/%s", k.Date, k.Stage, k.Frequency)
}

// CompositeKey is the key of the composite document for a date.
func CompositeKey(date, frequency string) StageKey {
	return StageKey{Date: date, Stage: model.StageComposite, Frequency: frequency}
}

// Recorder persists stage and composite results of pipeline runs.
// Writing an existing key replaces the stored document.
type Recorder interface {
	RecordStage(ctx context.Context, key StageKey, runID string, results any) error
	RecordComposite(ctx context.Context, key StageKey, runID string, results []model.CompositeResult) error
	LoadStage(ctx context.Context, key StageKey, out any) error
	LoadComposite(ctx context.Context, key StageKey) ([]model.CompositeResult, error)
	Latest(ctx context.Context, stage model.StageName, frequency string) (StageKey, error)
	Close() error
}

// encodeResults marshals a result list and reports how many entries it holds.
func encodeResults(results any) ([]byte, int, error) {
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, 0, fmt.Errorf("encode results: %w", err)
	}
	count := 0
	if v := reflect.ValueOf(results); v.Kind() == reflect.Slice {
		count = v.Len()
	}
	return payload, count, nil
}

func decodeResults(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}
	return nil
}

// Open returns the Recorder for driver: "sqlite" (path is the database file),
// "badger" (path is a directory) or "none".
func Open(driver, path string) (Recorder, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteRecorder(path)
	case "badger":
		return NewBadgerRecorder(path)
	case "", "none":
		return NewNoopRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
