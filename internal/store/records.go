package store

import (
	"context"
	"encoding/json"

	"opscal/internal/model"
)

// ManualRecords reads the notes widget's manually entered events from the
// store. The list is owned by that subsystem; this is a read-only view that
// is re-read on every aggregation pass.
type ManualRecords struct {
	st Store
}

func NewManualRecords(st Store) *ManualRecords {
	return &ManualRecords{st: st}
}

func (p *ManualRecords) ManualRecords(ctx context.Context) ([]model.ManualRecord, error) {
	data, found, err := p.st.Get(ctx, KeyManual)
	if err != nil || !found {
		return nil, err
	}
	var recs []model.ManualRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeadlineRecords reads the projects widget's deadline list, including its
// completed flags. Read-only, same as ManualRecords.
type DeadlineRecords struct {
	st Store
}

func NewDeadlineRecords(st Store) *DeadlineRecords {
	return &DeadlineRecords{st: st}
}

func (p *DeadlineRecords) DeadlineRecords(ctx context.Context) ([]model.DeadlineRecord, error) {
	data, found, err := p.st.Get(ctx, KeyDeadlines)
	if err != nil || !found {
		return nil, err
	}
	var recs []model.DeadlineRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
