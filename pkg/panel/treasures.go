package panel

import (
	"context"
	"net/url"
	"strconv"

	"narrate/pkg/action"
	"narrate/pkg/notify"
	"narrate/pkg/workflow"
)

// Treasure endpoints.
const (
	PathTreasureList   = "ecclesiastical-treasures/list/"
	PathTreasureFetch  = "ecclesiastical-treasures/fetch/"
	PathTreasureCreate = "ecclesiastical-treasures/create/"
	PathTreasureUpdate = "ecclesiastical-treasures/update/"
	PathTreasureDelete = "ecclesiastical-treasures/delete/"
	PathSystemLogs     = "system-logs/list/"
)

// Treasure texts.
const (
	TextTreasureAdded   = "Ecclesiastical Treasure has been successfully added!"
	TextTreasureUpdated = "Ecclesiastical Treasure has been successfully updated!"
	TextTreasureDeleted = "Ecclesiastical Treasure has been successfully deleted!"
	TextDeleteError     = "There was an error deleting data. Please try again later."
)

// Treasure is a treasure record as the backend returns it. Its fields are
// passed through untouched.
type Treasure = action.Body

// Listing is the result of a list action.
type Listing struct {
	workflow.Result
	Rows []action.Body
}

// TreasureQuery narrows the treasure list. An empty keyword lists everything.
type TreasureQuery struct {
	Keyword    string
	ExactMatch bool
}

func (q TreasureQuery) values() url.Values {
	if q.Keyword == "" {
		return nil
	}
	return url.Values{
		"search_keyword": {q.Keyword},
		"exact_match":    {strconv.FormatBool(q.ExactMatch)},
	}
}

func (p *Panel) list(ctx context.Context, name string, req action.Request) (Listing, error) {
	res, err := p.run(ctx, workflow.Action{Name: name, Request: req}, UI{}, workflow.Handlers{
		OnSuccess:     silent,
		OnClientError: fail(notify.TextLoadError),
	})
	if err != nil {
		return Listing{Result: res}, err
	}
	l := Listing{Result: res}
	if res.Outcome.OK() {
		l.Rows = res.Outcome.Body.Objects("resource_array")
	}
	return l, nil
}

// ListTreasures loads the dashboard table.
func (p *Panel) ListTreasures(ctx context.Context, q TreasureQuery) (Listing, error) {
	return p.list(ctx, "list_treasures", action.Get(PathTreasureList, q.values()))
}

// ListSystemLogs loads the system log table.
func (p *Panel) ListSystemLogs(ctx context.Context) (Listing, error) {
	return p.list(ctx, "list_system_logs", action.Get(PathSystemLogs, nil))
}

// FetchTreasure loads one treasure for the update and view pages.
func (p *Panel) FetchTreasure(ctx context.Context, id string) (Treasure, workflow.Result, error) {
	req := action.Get(PathTreasureFetch, url.Values{"treasure_id": {id}})
	res, err := p.run(ctx, workflow.Action{Name: "fetch_treasure", Request: req}, UI{}, workflow.Handlers{
		OnSuccess:     silent,
		OnClientError: fail(notify.TextLoadError),
	})
	if err != nil || !res.Outcome.OK() {
		return nil, res, err
	}
	return res.Outcome.Body.Object("resource_obj"), res, nil
}

// CreateTreasure submits a new treasure record.
func (p *Panel) CreateTreasure(ctx context.Context, fields map[string]any, ui UI) (workflow.Result, error) {
	req, err := action.PostJSON(PathTreasureCreate, fields)
	if err != nil {
		return workflow.Result{}, err
	}
	return p.run(ctx, workflow.Action{
		Name:    "create_treasure",
		Request: req,
		Form:    formOf(fields),
		Rules:   p.rules("create_treasure", nil),
	}, ui, workflow.Handlers{
		OnSuccess:     succeed(TextTreasureAdded, PageDashboard),
		OnClientError: fail(notify.TextGenericError),
	})
}

// UpdateTreasure replaces the fields of treasure id.
func (p *Panel) UpdateTreasure(ctx context.Context, id string, fields map[string]any, ui UI) (workflow.Result, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["uuid"] = id

	req, err := action.PostJSON(PathTreasureUpdate, body)
	if err != nil {
		return workflow.Result{}, err
	}
	return p.run(ctx, workflow.Action{
		Name:    "update_treasure",
		Request: req,
		Form:    formOf(body),
		Rules:   p.rules("update_treasure", nil),
	}, ui, workflow.Handlers{
		OnSuccess:     succeed(TextTreasureUpdated, PageDashboard),
		OnClientError: fail(notify.TextGenericError),
	})
}

// DeleteTreasure removes treasure id.
func (p *Panel) DeleteTreasure(ctx context.Context, id string, ui UI) (workflow.Result, error) {
	form := action.NewForm(map[string]string{"treasure_id": id})
	return p.run(ctx, workflow.Action{
		Name:    "delete_treasure",
		Request: action.Delete(PathTreasureDelete, url.Values{"treasure_id": {id}}),
		Form:    form,
		Rules:   p.rules("delete_treasure", requiredID("treasure_id")),
	}, ui, workflow.Handlers{
		OnSuccess:     succeed(TextTreasureDeleted, PageDashboard),
		OnClientError: fail(TextDeleteError),
	})
}

// formOf exposes scalar JSON fields to form rules.
func formOf(fields map[string]any) action.Form {
	values := make(map[string]string, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case string:
			values[k] = tv
		case bool:
			values[k] = strconv.FormatBool(tv)
		case float64:
			values[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case int:
			values[k] = strconv.Itoa(tv)
		}
	}
	return action.NewForm(values)
}
