package upload

import (
	"context"
	"fmt"
	"net/url"

	"narrate/pkg/action"
	"narrate/pkg/transport"
)

// Temporary media endpoints, relative to the backend root.
const (
	TempAddPath    = "file-management/media/temp/add/"
	TempDeletePath = "file-management/media/temp/delete/"
	FileField      = "file_src"
)

// TempStore stages files as temporary server objects.
type TempStore interface {
	// Stage uploads f and returns the server-assigned object id.
	Stage(ctx context.Context, f *File) (string, error)
	// Discard deletes a staged object by its staged filename.
	Discard(ctx context.Context, stagedName string) error
}

// HTTPStore is a TempStore talking to the backend's file-management endpoints.
type HTTPStore struct {
	transport   transport.Transport
	mediaTypeID string
}

// NewHTTPStore creates a store tagging uploads with mediaTypeID.
func NewHTTPStore(t transport.Transport, mediaTypeID string) *HTTPStore {
	return &HTTPStore{transport: t, mediaTypeID: mediaTypeID}
}

// StageRequest builds the multipart upload request for f.
func StageRequest(f *File, mediaTypeID string) action.Request {
	form := action.NewForm(map[string]string{"media_id": mediaTypeID}).WithFile(action.File{
		Field:       FileField,
		Name:        f.StagedName,
		ContentType: f.ContentType,
		Data:        f.Data,
	})
	return action.PostForm(TempAddPath, form)
}

// DiscardRequest builds the delete request for a staged filename.
func DiscardRequest(stagedName string) action.Request {
	return action.Delete(TempDeletePath, url.Values{"file_id": {stagedName}})
}

// Stage implements TempStore.
func (s *HTTPStore) Stage(ctx context.Context, f *File) (string, error) {
	resp, err := s.transport.Do(ctx, StageRequest(f, s.mediaTypeID))
	out := action.Interpret(resp, err)
	if !out.OK() {
		return "", out.AsError()
	}
	id := out.Body.Object("resource_obj").String("uuid")
	if id == "" {
		return "", fmt.Errorf("upload of %s returned no resource_obj.uuid", f.Name)
	}
	return id, nil
}

// Discard implements TempStore.
func (s *HTTPStore) Discard(ctx context.Context, stagedName string) error {
	resp, err := s.transport.Do(ctx, DiscardRequest(stagedName))
	return action.Interpret(resp, err).AsError()
}
