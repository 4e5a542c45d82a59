package panel

import (
	"context"
	"net/url"

	"narrate/pkg/action"
	"narrate/pkg/notify"
	"narrate/pkg/upload"
	"narrate/pkg/validate"
	"narrate/pkg/workflow"
)

// Media endpoints.
const (
	PathMediaList      = "ecclesiastical-treasures/media/list/"
	PathMediaUploadNew = "ecclesiastical-treasures/media/upload_new/"
	PathMediaUpdate    = "ecclesiastical-treasures/media/update/"
	PathMediaDelete    = "ecclesiastical-treasures/media/delete/"
)

// Media texts.
const (
	TextMediaUploaded = "Media for Ecclesiastical Treasure has been successfully uploaded!"
	TextMediaUpdated  = "Media of Ecclesiastical Treasure has been successfully updated!"
	TextMediaDeleted  = "Media of Ecclesiastical Treasure has been successfully deleted!"
)

// StagedField is the form field carrying the pending temporary object id.
const StagedField = "new_media_uuid"

// MediaPage is the media page of treasure id.
func MediaPage(treasureID string) string {
	return PageMedia + "?" + url.Values{"treasure_id": {treasureID}}.Encode()
}

func requiredID(fields ...string) validate.Rules {
	return validate.Required(fields...)
}

// withStaged adds the slot's pending id to form for validation.
func withStaged(form action.Form, slot *upload.Slot) action.Form {
	id, _ := slot.Pending()
	return form.With(StagedField, id)
}

// commitOnSuccess clears the slot once the backend has taken the object.
func commitOnSuccess(slot *upload.Slot, text, to string) func(action.Outcome) workflow.Reaction {
	return func(action.Outcome) workflow.Reaction {
		slot.Commit()
		return workflow.Reaction{Notice: notify.Notice{Text: text}, NavigateTo: to}
	}
}

// ListMedia loads the media table of a treasure.
func (p *Panel) ListMedia(ctx context.Context, treasureID string) (Listing, error) {
	return p.list(ctx, "list_media", action.Get(PathMediaList, url.Values{"treasure_id": {treasureID}}))
}

// UploadNewMedia attaches the staged object in slot to a treasure. The form
// carries treasure_id, media_type_id and type.
func (p *Panel) UploadNewMedia(ctx context.Context, form action.Form, slot *upload.Slot, ui UI) (workflow.Result, error) {
	req, err := action.PostJSON(PathMediaUploadNew, map[string]string{
		"treasure_id":   form.Value("treasure_id"),
		"media_type_id": form.Value("media_type_id"),
		"type":          form.Value("type"),
	})
	if err != nil {
		return workflow.Result{}, err
	}
	return p.run(ctx, workflow.Action{
		Name:    "upload_new_media",
		Request: req,
		Form:    withStaged(form, slot),
		Rules:   p.rules("upload_new_media", append(validate.Required("treasure_id", "type"), validate.FilePresent(StagedField))),
	}, ui, workflow.Handlers{
		OnSuccess:     commitOnSuccess(slot, TextMediaUploaded, MediaPage(form.Value("treasure_id"))),
		OnClientError: fail(notify.TextGenericError),
	})
}

// UpdateMedia swaps media_id of a treasure for the staged object in slot.
func (p *Panel) UpdateMedia(ctx context.Context, form action.Form, slot *upload.Slot, ui UI) (workflow.Result, error) {
	newID, _ := slot.Pending()
	req, err := action.PostJSON(PathMediaUpdate, map[string]string{
		"treasure_id":  form.Value("treasure_id"),
		"old_media_id": form.Value("media_id"),
		"new_media_id": newID,
	})
	if err != nil {
		return workflow.Result{}, err
	}
	return p.run(ctx, workflow.Action{
		Name:    "update_media",
		Request: req,
		Form:    withStaged(form, slot),
		Rules:   p.rules("update_media", append(validate.Required("treasure_id", "media_id"), validate.FilePresent(StagedField))),
	}, ui, workflow.Handlers{
		OnSuccess:     commitOnSuccess(slot, TextMediaUpdated, MediaPage(form.Value("treasure_id"))),
		OnClientError: fail(notify.TextGenericError),
	})
}

// DeleteMedia removes media id from a treasure.
func (p *Panel) DeleteMedia(ctx context.Context, treasureID, mediaID string, ui UI) (workflow.Result, error) {
	form := action.NewForm(map[string]string{"treasure_id": treasureID, "media_id": mediaID})
	return p.run(ctx, workflow.Action{
		Name:    "delete_media",
		Request: action.Delete(PathMediaDelete, url.Values{"treasure_id": {treasureID}, "media_id": {mediaID}}),
		Form:    form,
		Rules:   p.rules("delete_media", requiredID("treasure_id", "media_id")),
	}, ui, workflow.Handlers{
		OnSuccess:     succeed(TextMediaDeleted, MediaPage(treasureID)),
		OnClientError: fail(TextDeleteError),
	})
}

// DiscardStaged deletes a staged temporary object by filename.
func (p *Panel) DiscardStaged(ctx context.Context, stagedName string) (workflow.Result, error) {
	return p.run(ctx, workflow.Action{
		Name:    "discard_temp_media",
		Request: upload.DiscardRequest(stagedName),
		Form:    action.NewForm(map[string]string{"file_id": stagedName}),
		Rules:   requiredID("file_id"),
	}, UI{}, workflow.Handlers{
		OnSuccess: succeed(upload.TextDiscarded, ""),
	})
}
