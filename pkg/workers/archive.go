package workers

import (
	"context"

	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/cbodonnell/pyramid/pkg/repositories/models"
)

type ArchiveRunRequest struct {
	Run *models.RunRecord
}

// ArchiveWorker saves the debrief of every finished room.
type ArchiveWorker struct {
	repository     repositories.Repository
	archiveRunChan <-chan ArchiveRunRequest
}

type NewArchiveWorkerOptions struct {
	Repository     repositories.Repository
	ArchiveRunChan <-chan ArchiveRunRequest
}

func NewArchiveWorker(opts NewArchiveWorkerOptions) *ArchiveWorker {
	return &ArchiveWorker{
		repository:     opts.Repository,
		archiveRunChan: opts.ArchiveRunChan,
	}
}

func (w *ArchiveWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.archiveRunChan:
			if !ok {
				return
			}
			w.saveRun(ctx, req)
		}
	}
}

func (w *ArchiveWorker) saveRun(ctx context.Context, req ArchiveRunRequest) {
	if req.Run == nil {
		return
	}
	if err := w.repository.SaveRun(ctx, req.Run); err != nil {
		log.Error("Failed to save run of room %s: %v", req.Run.RoomID, err)
		return
	}
	log.Debug("Archived run of room %s", req.Run.RoomID)
}
