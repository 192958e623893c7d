package photos

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
)

// Tracker remembers photos that have not finished processing so a
// scheduled job can poll them.
type Tracker struct {
	service *Service

	mu      sync.Mutex
	pending map[string]domain.ProcessingStatus
}

func NewTracker(service *Service) *Tracker {
	return &Tracker{service: service, pending: make(map[string]domain.ProcessingStatus)}
}

// Track starts following photo unless it is already terminal.
func (t *Tracker) Track(photo domain.Photo) {
	if photo.ProcessingStatus.IsTerminal() {
		return
	}
	t.mu.Lock()
	t.pending[photo.ID] = photo.ProcessingStatus
	t.mu.Unlock()
}

// Pending returns the ids still being followed, sorted.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Poll fetches every pending photo once and returns the ones that finished.
// Photos whose lookup fails stay pending; their errors are joined.
func (t *Tracker) Poll(ctx context.Context) ([]domain.Photo, error) {
	var (
		finished []domain.Photo
		errs     []error
	)
	for _, id := range t.Pending() {
		photo, err := t.service.Status(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		t.mu.Lock()
		last := t.pending[id]
		t.mu.Unlock()
		if err := checkTransition(photo, last); err != nil {
			errs = append(errs, err)
			continue
		}
		if photo.ProcessingStatus != last {
			metrics.PhotoStatus.WithLabelValues(string(photo.ProcessingStatus)).Inc()
		}

		t.mu.Lock()
		if photo.ProcessingStatus.IsTerminal() {
			delete(t.pending, id)
			finished = append(finished, photo)
		} else {
			t.pending[id] = photo.ProcessingStatus
		}
		t.mu.Unlock()

		t.service.logger.Debug().
			Str("photo_id", id).
			Str("status", string(photo.ProcessingStatus)).
			Msg("photo status polled")
	}
	return finished, errors.Join(errs...)
}
