package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the per-spot capture state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCapturing Phase = "capturing"
	PhaseSucceeded Phase = "succeeded"
	PhaseTimedOut  Phase = "timed-out"
	PhaseFailed    Phase = "failed"
)

// ImageState is the externally visible capture state for one spot. The
// workflow is its only writer; the stream transport feeds image
// notifications in through NotifyImage instead of touching it directly.
type ImageState struct {
	Phase     Phase  `json:"phase"`
	ImageURL  string `json:"image_url,omitempty"`
	LastTime  string `json:"last_time,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

type spotState struct {
	ImageState
	generation    uint64
	cooldownUntil time.Time
}

// Workflow orchestrates take-picture and refresh against the capture
// backend. One operation per spot at a time; a capture with no completion
// signal within the ceiling times out; refreshes are rate-bound by a short
// cooldown after completion.
type Workflow struct {
	backend  *Backend
	timeout  time.Duration
	cooldown time.Duration

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
	log   zerolog.Logger

	mu    sync.Mutex
	spots map[int]*spotState
}

func NewWorkflow(backend *Backend, timeout, cooldown time.Duration, log zerolog.Logger) *Workflow {
	return &Workflow{
		backend:  backend,
		timeout:  timeout,
		cooldown: cooldown,
		now:      time.Now,
		after:    time.After,
		log:      log.With().Str("component", "capture").Logger(),
		spots:    make(map[int]*spotState),
	}
}

func (w *Workflow) state(spotID int) *spotState {
	st, ok := w.spots[spotID]
	if !ok {
		st = &spotState{ImageState: ImageState{Phase: PhaseIdle}}
		w.spots[spotID] = st
	}
	return st
}

// TakePicture asks the backend to capture a fresh image for the spot. A call
// while a capture or refresh is already in flight for that spot is a no-op.
// Completion is signalled by an image notification from the recognition
// feed; if none arrives within the ceiling the state becomes timed-out.
func (w *Workflow) TakePicture(ctx context.Context, spotID int) error {
	w.mu.Lock()
	st := w.state(spotID)
	if st.Phase == PhaseCapturing {
		w.mu.Unlock()
		w.log.Debug().Int("spot_id", spotID).Msg("capture already in flight, ignoring")
		return nil
	}
	st.Phase = PhaseCapturing
	st.LastError = ""
	st.generation++
	gen := st.generation
	w.mu.Unlock()

	opID := uuid.NewString()
	w.log.Info().Int("spot_id", spotID).Str("op_id", opID).Msg("requesting capture")

	if err := w.backend.TakePicture(ctx, spotID); err != nil {
		w.fail(spotID, gen, err)
		return err
	}

	go w.watchTimeout(spotID, gen, opID)
	return nil
}

// watchTimeout marks the capture timed-out if it is still in flight when the
// ceiling elapses. A NotifyImage or a newer operation wins the race by
// changing phase or generation first.
func (w *Workflow) watchTimeout(spotID int, gen uint64, opID string) {
	<-w.after(w.timeout)

	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state(spotID)
	if st.generation != gen || st.Phase != PhaseCapturing {
		return
	}
	st.Phase = PhaseTimedOut
	st.LastError = fmt.Sprintf("no capture result within %s", w.timeout)
	w.log.Warn().Int("spot_id", spotID).Str("op_id", opID).Msg("capture timed out")
}

// Refresh re-reads the last stored picture. No-op while an operation is in
// flight for the spot or during the post-completion cooldown window.
func (w *Workflow) Refresh(ctx context.Context, spotID int) error {
	w.mu.Lock()
	st := w.state(spotID)
	now := w.now()
	if st.Phase == PhaseCapturing || now.Before(st.cooldownUntil) {
		w.mu.Unlock()
		w.log.Debug().Int("spot_id", spotID).Msg("refresh suppressed")
		return nil
	}
	st.Phase = PhaseCapturing
	st.LastError = ""
	st.generation++
	gen := st.generation
	w.mu.Unlock()

	timestamp, err := w.backend.LastPictureInfo(ctx, spotID)
	if err == nil {
		err = w.backend.CheckLastPicture(ctx, spotID)
	}
	if err != nil {
		w.mu.Lock()
		st = w.state(spotID)
		if st.generation == gen {
			st.Phase = PhaseFailed
			st.LastError = err.Error()
			st.cooldownUntil = w.now().Add(w.cooldown)
		}
		w.mu.Unlock()
		w.log.Error().Err(err).Int("spot_id", spotID).Msg("refresh failed")
		return err
	}

	w.mu.Lock()
	st = w.state(spotID)
	if st.generation == gen {
		st.Phase = PhaseSucceeded
		st.LastTime = timestamp
		st.ImageURL = w.backend.LastPictureURL(spotID, w.now().UnixMilli())
		st.cooldownUntil = w.now().Add(w.cooldown)
	}
	w.mu.Unlock()

	w.log.Info().Int("spot_id", spotID).Str("last_time", timestamp).Msg("picture refreshed")
	return nil
}

// NotifyImage records a freshly announced image for a spot and resolves its
// in-flight capture, if any. spotID 0 means the feed message carried no
// recognizable spot id; such notifications resolve every capture currently
// waiting.
func (w *Workflow) NotifyImage(spotID int, imageURL, lastTime string) {
	bust := w.now().UnixMilli()

	w.mu.Lock()
	defer w.mu.Unlock()

	if spotID != 0 {
		st := w.state(spotID)
		w.applyImageLocked(spotID, st, imageURL, lastTime, bust)
		return
	}

	for id, st := range w.spots {
		if st.Phase == PhaseCapturing {
			w.applyImageLocked(id, st, imageURL, lastTime, bust)
		}
	}
}

func (w *Workflow) applyImageLocked(spotID int, st *spotState, imageURL, lastTime string, bust int64) {
	st.ImageURL = fmt.Sprintf("%s?%d", imageURL, bust)
	if lastTime != "" {
		st.LastTime = lastTime
	}
	if st.Phase == PhaseCapturing {
		st.Phase = PhaseSucceeded
		st.LastError = ""
	}
	w.log.Debug().Int("spot_id", spotID).Str("last_time", lastTime).Msg("image resolved from feed")
}

func (w *Workflow) fail(spotID int, gen uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state(spotID)
	if st.generation != gen {
		return
	}
	st.Phase = PhaseFailed
	st.LastError = err.Error()
	w.log.Error().Err(err).Int("spot_id", spotID).Msg("capture request failed")
}

// ImageState returns the current capture state for the spot.
func (w *Workflow) ImageState(spotID int) ImageState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state(spotID).ImageState
}
