package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrate/pkg/action"
	"narrate/pkg/logx"
	"narrate/pkg/metrics"
	"narrate/pkg/notify"
	"narrate/pkg/workflow"
)

// Notices shown by the controller.
const (
	TextStaged    = "Upload of temporary media has been successfully completed!"
	TextDiscarded = "Deletion of temporary media has been successfully completed!"
)

// ErrRejected is returned for a file that failed local validation.
var ErrRejected = errors.New("upload: file rejected")

// Widget is the upload widget as seen by the controller.
type Widget interface {
	// Enqueue starts uploading an accepted file.
	Enqueue(ctx context.Context, f *File)
	// Remove drops a file from the widget; it fires OnRemoved.
	Remove(ctx context.Context, f *File)
}

// Events are the widget callbacks.
type Events interface {
	OnAccepted(ctx context.Context, f *File) error
	OnUploadSuccess(ctx context.Context, f *File, serverID string)
	OnUploadError(ctx context.Context, f *File, err error)
	OnRemoved(ctx context.Context, f *File)
}

// Controller validates files locally and keeps one upload Slot in sync
// with the widget.
type Controller struct {
	widget      Widget
	store       TempStore
	notifier    notify.Notifier
	recorder    metrics.Recorder
	slot        *Slot
	constraints Constraints
	images      Measurer
	videos      Measurer
	dismiss     time.Duration
	logger      *logx.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithConstraints sets minimum dimensions.
func WithConstraints(c Constraints) ControllerOption {
	return func(ctl *Controller) { ctl.constraints = c }
}

// WithVideoMeasurer enables dimension checks for videos.
func WithVideoMeasurer(p Measurer) ControllerOption {
	return func(ctl *Controller) { ctl.videos = p }
}

// WithImageMeasurer replaces the header-based image measurer.
func WithImageMeasurer(p Measurer) ControllerOption {
	return func(ctl *Controller) { ctl.images = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ControllerOption {
	return func(ctl *Controller) {
		if r != nil {
			ctl.recorder = r
		}
	}
}

// WithSuccessDismiss sets how long success notices stay visible.
func WithSuccessDismiss(d time.Duration) ControllerOption {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.dismiss = d
		}
	}
}

// NewController creates a controller filling slot.
func NewController(store TempStore, slot *Slot, n notify.Notifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:    store,
		notifier: n,
		recorder: metrics.Nop{},
		slot:     slot,
		images:   ImageMeasurer{},
		dismiss:  workflow.DefaultSuccessDismiss,
		logger:   logx.NewLogger("upload"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach connects the controller to its widget.
func (c *Controller) Attach(w Widget) { c.widget = w }

// Slot returns the slot the controller fills.
func (c *Controller) Slot() *Slot { return c.slot }

// OnAccepted checks type and dimensions; a passing file is enqueued, a
// failing one is removed without touching the server.
func (c *Controller) OnAccepted(ctx context.Context, f *File) error {
	kind := KindOf(f.ContentType)
	if kind == Unsupported {
		return c.reject(ctx, f, TextInvalidType)
	}

	if c.constraints.enabled() {
		measure := c.images
		if kind == Video {
			measure = c.videos
		}
		if measure != nil {
			w, h, err := measure.Dimensions(f)
			if err != nil {
				c.logger.Warn("Could not read dimensions of %s: %v", f.Name, err)
				return c.reject(ctx, f, TextUnreadable)
			}
			if !c.constraints.allows(w, h) {
				logx.Debug(ctx, "upload", "%s is %dx%d, below %dx%d", f.Name, w, h, c.constraints.MinWidth, c.constraints.MinHeight)
				return c.reject(ctx, f, dimensionText(kind, c.constraints.MinWidth, c.constraints.MinHeight))
			}
		}
	}

	c.recorder.IncUpload("accepted")
	if c.widget != nil {
		c.widget.Enqueue(ctx, f)
	}
	return nil
}

func (c *Controller) reject(ctx context.Context, f *File, text string) error {
	f.rejected = true
	c.recorder.IncUpload("rejected")
	c.notify(notify.Notice{Kind: notify.Error, Text: text})
	if c.widget != nil {
		c.widget.Remove(ctx, f)
	}
	return fmt.Errorf("%w: %s", ErrRejected, text)
}

// OnUploadSuccess records the staged object on the file and in the slot.
func (c *Controller) OnUploadSuccess(_ context.Context, f *File, serverID string) {
	f.serverID = serverID
	c.slot.Set(serverID, f.StagedName)
	c.recorder.IncUpload("staged")
	c.notify(notify.Notice{Kind: notify.Success, Text: TextStaged, AutoDismiss: c.dismiss})
}

// OnUploadError clears the slot and reports the failure.
func (c *Controller) OnUploadError(_ context.Context, f *File, err error) {
	c.slot.Clear()
	c.recorder.IncUpload("failed")
	c.logger.Warn("Upload of %s failed: %v", f.Name, err)
	c.notify(notify.Notice{Kind: notify.Error, Text: uploadErrorText(err)})
}

// OnRemoved deletes the temporary object of a staged file. The slot is
// cleared only while it still holds this file. Files removed by local
// validation, or never staged, leave the server alone.
func (c *Controller) OnRemoved(ctx context.Context, f *File) {
	if f.rejected || !f.Staged() {
		return
	}
	if c.slot.Staged() == f.StagedName {
		c.slot.Clear()
	}
	c.recorder.IncUpload("removed")

	err := c.store.Discard(ctx, f.StagedName)
	f.serverID = ""
	switch {
	case err == nil:
		c.notify(notify.Notice{Kind: notify.Success, Text: TextDiscarded, AutoDismiss: c.dismiss})
	default:
		c.logger.Warn("Failed to discard %s: %v", f.StagedName, err)
		c.notify(notify.Notice{Kind: notify.Error, Text: uploadErrorText(err)})
	}
}

func uploadErrorText(err error) string {
	var se *action.StatusError
	if errors.As(err, &se) && se.Outcome.Kind == action.KindNetworkError {
		return notify.TextConnectivity
	}
	return notify.TextGenericError
}

func (c *Controller) notify(n notify.Notice) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}
