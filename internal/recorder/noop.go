package recorder

import (
	"context"

	"StageScreener/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordStage(context.Context, StageKey, string, any) error { return nil }
func (n *NoopRecorder) RecordComposite(context.Context, StageKey, string, []model.CompositeResult) error {
	return nil
}
func (n *NoopRecorder) LoadStage(context.Context, StageKey, any) error { return ErrNotFound }
func (n *NoopRecorder) LoadComposite(context.Context, StageKey) ([]model.CompositeResult, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) Latest(context.Context, model.StageName, string) (StageKey, error) {
	return StageKey{}, ErrNotFound
}
func (n *NoopRecorder) Close() error { return nil }
