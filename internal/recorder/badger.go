package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/timshannon/badgerhold/v4"

	"StageScreener/internal/model"
)

// resultDocument is the badgerhold record for one StageKey.
type resultDocument struct {
	ID          string `badgerhold:"key"`
	Date        string
	Stage       string `badgerhold:"index"`
	Frequency   string
	RunID       string
	SymbolCount int
	Payload     []byte
	UpdatedAt   time.Time
}

// BadgerRecorder persists result documents in an embedded Badger store.
type BadgerRecorder struct {
	store *badgerhold.Store
}

// NewBadgerRecorder opens (or creates) the store under dir.
func NewBadgerRecorder(dir string) (*BadgerRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	log.Info().Str("dir", dir).Msg("badger recorder opened")
	return &BadgerRecorder{store: store}, nil
}

func (b *BadgerRecorder) put(ctx context.Context, key StageKey, runID string, results any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, count, err := encodeResults(results)
	if err != nil {
		return err
	}
	doc := &resultDocument{
		ID:          key.ID(),
		Date:        key.Date,
		Stage:       string(key.Stage),
		Frequency:   key.Frequency,
		RunID:       runID,
		SymbolCount: count,
		Payload:     payload,
		UpdatedAt:   time.Now(),
	}
	if err := b.store.Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("record %s: %w", doc.ID, err)
	}
	return nil
}

func (b *BadgerRecorder) RecordStage(ctx context.Context, key StageKey, runID string, results any) error {
	return b.put(ctx, key, runID, results)
}

func (b *BadgerRecorder) RecordComposite(ctx context.Context, key StageKey, runID string, results []model.CompositeResult) error {
	return b.put(ctx, key, runID, results)
}

func (b *BadgerRecorder) LoadStage(ctx context.Context, key StageKey, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var doc resultDocument
	err := b.store.Get(key.ID(), &doc)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("%s: %w", key.ID(), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key.ID(), err)
	}
	return decodeResults(doc.Payload, out)
}

func (b *BadgerRecorder) LoadComposite(ctx context.Context, key StageKey) ([]model.CompositeResult, error) {
	var out []model.CompositeResult
	if err := b.LoadStage(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerRecorder) Latest(ctx context.Context, stage model.StageName, frequency string) (StageKey, error) {
	if err := ctx.Err(); err != nil {
		return StageKey{}, err
	}
	var docs []resultDocument
	query := badgerhold.Where("Stage").Eq(string(stage)).Index("Stage").
		And("Frequency").Eq(frequency).
		SortBy("Date").Reverse().Limit(1)
	if err := b.store.Find(&docs, query); err != nil {
		return StageKey{}, fmt.Errorf("latest %s: %w", stage, err)
	}
	if len(docs) == 0 {
		return StageKey{}, ErrNotFound
	}
	return StageKey{Date: docs[0].Date, Stage: stage, Frequency: frequency}, nil
}

func (b *BadgerRecorder) Close() error {
	log.Info().Msg("closing badger recorder")
	return b.store.Close()
}
