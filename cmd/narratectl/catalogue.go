package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"narrate/pkg/action"
	"narrate/pkg/panel"
	"narrate/pkg/upload"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printListing(cmd *cobra.Command, l panel.Listing, err error) error {
	if err := finish(l.Result, err); err != nil {
		return err
	}
	rows := l.Rows
	if rows == nil {
		rows = []action.Body{}
	}
	return printJSON(cmd.OutOrStdout(), rows)
}

// fieldsFrom merges --file JSON with --set pairs; --set wins.
func fieldsFrom(path string, set map[string]string) (map[string]any, error) {
	fields := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	for k, v := range set {
		fields[k] = v
	}
	return fields, nil
}

func newTreasuresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasures",
		Short: "Manage ecclesiastical treasures",
	}

	var keyword string
	var exact bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List treasures, optionally filtered by keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			l, err := a.panel.ListTreasures(cmd.Context(), panel.TreasureQuery{Keyword: keyword, ExactMatch: exact})
			return printListing(cmd, l, err)
		},
	}
	list.Flags().StringVar(&keyword, "keyword", "", "search keyword")
	list.Flags().BoolVar(&exact, "exact", false, "match the keyword exactly")

	fetch := &cobra.Command{
		Use:   "fetch <treasure-id>",
		Short: "Show one treasure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			t, res, err := a.panel.FetchTreasure(cmd.Context(), args[0])
			if err := finish(res, err); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}

	var file string
	var set map[string]string
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a treasure from a JSON file and/or --set pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := fieldsFrom(file, set)
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.CreateTreasure(cmd.Context(), fields, a.ui(cmd)))
		},
	}
	update := &cobra.Command{
		Use:   "update <treasure-id>",
		Short: "Replace the fields of a treasure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := fieldsFrom(file, set)
			if err != nil {
				return err
			}
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.UpdateTreasure(cmd.Context(), args[0], fields, a.ui(cmd)))
		},
	}
	for _, c := range []*cobra.Command{create, update} {
		c.Flags().StringVar(&file, "file", "", "JSON file with treasure fields")
		c.Flags().StringToStringVar(&set, "set", nil, "field=value pairs")
	}

	del := &cobra.Command{
		Use:   "delete <treasure-id>",
		Short: "Delete a treasure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.DeleteTreasure(cmd.Context(), args[0], a.ui(cmd)))
		},
	}

	cmd.AddCommand(list, fetch, create, update, del)
	return cmd
}

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "List system logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			l, err := a.panel.ListSystemLogs(cmd.Context())
			return printListing(cmd, l, err)
		},
	}
}

// readMedia loads a local file and guesses its MIME type from the extension,
// then from its content.
func readMedia(path string) (*upload.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return upload.NewFile(name, ct, data), nil
}

// stage runs path through the upload widget and returns the filled slot.
// The returned cleanup discards the staged object unless the slot was committed.
func (a *app) stage(ctx context.Context, path string) (*upload.Slot, func(), error) {
	f, err := readMedia(path)
	if err != nil {
		return nil, nil, err
	}

	store := upload.NewHTTPStore(a.http, a.cfg.Media.MediaTypeID)
	slot := &upload.Slot{}
	ctl := upload.NewController(store, slot, a.console,
		upload.WithConstraints(upload.Constraints{MinWidth: a.cfg.Media.MinWidth, MinHeight: a.cfg.Media.MinHeight}),
		upload.WithRecorder(a.recorder),
		upload.WithSuccessDismiss(a.cfg.SuccessDismiss()),
	)
	queue := upload.NewQueue(store, ctl, a.console, a.cfg.Media.MaxFiles)
	ctl.Attach(queue)

	if err := queue.Add(ctx, f); err != nil {
		return nil, nil, errReported
	}
	cleanup := func() {
		if _, pending := slot.Pending(); pending {
			queue.Remove(context.WithoutCancel(ctx), f)
		}
	}
	if _, pending := slot.Pending(); !pending {
		return nil, nil, errReported
	}
	return slot, cleanup, nil
}

func newMediaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Manage the media of a treasure",
	}

	list := &cobra.Command{
		Use:   "list <treasure-id>",
		Short: "List media of a treasure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			l, err := a.panel.ListMedia(cmd.Context(), args[0])
			return printListing(cmd, l, err)
		},
	}

	var mediaType string
	upl := &cobra.Command{
		Use:   "upload <treasure-id> <file>",
		Short: "Stage a file and attach it to a treasure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			slot, cleanup, err := a.stage(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			defer cleanup()
			form := action.NewForm(map[string]string{
				"treasure_id":   args[0],
				"media_type_id": a.cfg.Media.MediaTypeID,
				"type":          mediaType,
			})
			return finish(a.panel.UploadNewMedia(cmd.Context(), form, slot, a.ui(cmd)))
		},
	}
	upl.Flags().StringVar(&mediaType, "type", "", "media type label, e.g. image or video")

	update := &cobra.Command{
		Use:   "update <treasure-id> <media-id> <file>",
		Short: "Replace a media item with a new file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			slot, cleanup, err := a.stage(cmd.Context(), args[2])
			if err != nil {
				return err
			}
			defer cleanup()
			form := action.NewForm(map[string]string{"treasure_id": args[0], "media_id": args[1]})
			return finish(a.panel.UpdateMedia(cmd.Context(), form, slot, a.ui(cmd)))
		},
	}

	del := &cobra.Command{
		Use:   "delete <treasure-id> <media-id>",
		Short: "Delete a media item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd); err != nil {
				return err
			}
			defer a.close(cmd)
			return finish(a.panel.DeleteMedia(cmd.Context(), args[0], args[1], a.ui(cmd)))
		},
	}

	cmd.AddCommand(list, upl, update, del)
	return cmd
}
