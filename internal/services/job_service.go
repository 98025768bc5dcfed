package services

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// JobRecorder persists queue state changes to the job_records table.
// It implements queue.Recorder.
type JobRecorder struct {
	DB *gorm.DB
}

// RecordJob upserts the snapshot. The purchase id is lifted out of the
// payload so that job rows can be joined to purchases.
func (r *JobRecorder) RecordJob(ctx context.Context, snap queue.Snapshot) error {
	rec := &domain.JobRecord{
		ID:        snap.ID,
		Kind:      snap.Kind,
		State:     string(snap.State),
		Progress:  snap.Progress,
		Error:     snap.Error,
		Payload:   string(snap.Payload),
		CreatedAt: snap.CreatedAt,
	}
	var pl purchasePayload
	if json.Unmarshal(snap.Payload, &pl) == nil && pl.PurchaseID != "" {
		rec.PurchaseID = &pl.PurchaseID
	}
	return repo.UpsertJobRecord(ctx, r.DB, rec)
}

// JobView is the public shape of a job.
type JobView struct {
	ID       string      `json:"id"`
	Kind     string      `json:"kind"`
	State    queue.State `json:"state"`
	Progress int         `json:"progress"`
	Error    string      `json:"error,omitempty"`
	Live     bool        `json:"live"`
}

// JobService looks jobs up in the live queue, then in the recorded history.
type JobService struct {
	DB   *gorm.DB
	Jobs JobQueue
}

// Get returns the job with the given id.
func (s *JobService) Get(ctx context.Context, id string) (*JobView, error) {
	if s.Jobs != nil {
		if snap, ok := s.Jobs.Get(id); ok {
			return &JobView{ID: snap.ID, Kind: snap.Kind, State: snap.State, Progress: snap.Progress, Error: snap.Error, Live: true}, nil
		}
	}
	rec, err := repo.GetJobRecord(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &JobView{ID: rec.ID, Kind: rec.Kind, State: queue.State(rec.State), Progress: rec.Progress, Error: rec.Error}, nil
}
