package panel

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrate/pkg/action"
	"narrate/pkg/notify"
	"narrate/pkg/poll"
	"narrate/pkg/testkit"
	"narrate/pkg/transport"
	"narrate/pkg/upload"
	"narrate/pkg/validate"
	"narrate/pkg/workflow"
)

type env struct {
	backend  *testkit.MockBackend
	notifier *testkit.RecordingNotifier
	nav      *testkit.FakeNavigator
	control  *testkit.FakeControl
	fields   *testkit.FakeFields
	panel    *Panel
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	backend := testkit.NewMockBackend()
	t.Cleanup(backend.Close)
	tr, err := transport.NewHTTP(backend.URL())
	require.NoError(t, err)

	e := &env{
		backend:  backend,
		notifier: testkit.NewRecordingNotifier(),
		nav:      &testkit.FakeNavigator{},
		control:  &testkit.FakeControl{},
		fields:   &testkit.FakeFields{},
	}
	wf := workflow.New(tr, e.notifier, e.nav)
	poller := poll.NewPoller(tr, e.notifier, nil, poll.Config{Interval: 5 * time.Millisecond})
	e.panel = New(wf, poller, opts...)
	return e
}

func (e *env) ui() UI {
	return UI{Lock: workflow.NewLock(e.control), Fields: e.fields}
}

func form(kv ...string) action.Form {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return action.NewForm(values)
}

func TestSignIn(t *testing.T) {
	t.Run("success follows next_url", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathLogin, testkit.Reply{Body: map[string]any{"next_url": "/backend/dashboard/"}})

		res, err := e.panel.SignIn(context.Background(), form("email", "a@b.c", "password", "secret", "organization", "Museum"), e.ui())
		require.NoError(t, err)

		assert.True(t, res.Outcome.OK())
		assert.Empty(t, e.notifier.Notices())
		assert.Equal(t, []testkit.Navigation{{Delay: DefaultSignInDelay, URL: "/backend/dashboard/"}}, e.nav.Navigations())
		testkit.AssertDisabled(t, e.control)

		reqs := e.backend.Requests(http.MethodPost, PathLogin)
		require.Len(t, reqs, 1)
		assert.Equal(t, "Museum", reqs[0].Form.Get("organization"))
	})

	t.Run("forbidden means not activated", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathLogin, testkit.Reply{Status: http.StatusForbidden})

		_, err := e.panel.SignIn(context.Background(), form("email", "a@b.c", "password", "secret"), e.ui())
		require.NoError(t, err)
		testkit.AssertNotice(t, e.notifier, notify.Warning, TextNotActivated)
		testkit.AssertEnabled(t, e.control)
	})

	t.Run("other failures are wrong credentials", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathLogin, testkit.Reply{Status: http.StatusUnauthorized, Body: map[string]any{"message": "nope"}})

		_, err := e.panel.SignIn(context.Background(), form("email", "a@b.c", "password", "secret"), e.ui())
		require.NoError(t, err)
		testkit.AssertNotice(t, e.notifier, notify.Error, TextWrongCredentials)
	})
}

func TestRegister(t *testing.T) {
	valid := form("email", "a@b.c", "password", "12345678", "confirm_password", "12345678", "name", "Ana", "surname", "Pop")

	t.Run("short password never reaches the server", func(t *testing.T) {
		e := newEnv(t)
		res, err := e.panel.Register(context.Background(), valid.With("password", "1234567"), e.ui())
		require.NoError(t, err)
		require.NotNil(t, res.Validation)
		assert.Equal(t, []string{"password", "confirm_password"}, e.fields.Invalid())
		assert.Equal(t, 0, e.backend.Count(http.MethodPost, PathRegister))
	})

	t.Run("created navigates to activation", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathRegister, testkit.Reply{Status: http.StatusCreated, Body: map[string]any{}})

		_, err := e.panel.Register(context.Background(), valid, e.ui())
		require.NoError(t, err)
		testkit.AssertNotice(t, e.notifier, notify.Success, TextRegistered)
		require.Len(t, e.nav.Navigations(), 1)
		assert.Equal(t, PageActivate, e.nav.Navigations()[0].URL)

		reqs := e.backend.Requests(http.MethodPost, PathRegister)
		require.Len(t, reqs, 1)
		assert.Equal(t, "Pop", reqs[0].Form.Get("surname"))
		assert.Empty(t, reqs[0].Form.Get("confirm_password"))
	})

	t.Run("email conflict marks email", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathRegister, testkit.Reply{Status: http.StatusConflict, Body: map[string]any{"already_exists_fields": []string{"email"}}})

		_, err := e.panel.Register(context.Background(), valid, e.ui())
		require.NoError(t, err)
		assert.Equal(t, []string{"email"}, e.fields.Invalid())
		testkit.AssertNotice(t, e.notifier, notify.Error, TextEmailInUse)
		testkit.AssertEnabled(t, e.control)
	})

	t.Run("other failure is generic", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathRegister, testkit.Reply{Status: http.StatusBadRequest, Body: map[string]any{"already_exists_fields": []string{}}})

		_, err := e.panel.Register(context.Background(), valid, e.ui())
		require.NoError(t, err)
		testkit.AssertNotice(t, e.notifier, notify.Error, notify.TextGenericError)
	})
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     map[string]any
		kind     notify.Kind
		text     string
		navigate bool
	}{
		{"already activated", 200, map[string]any{"resource_is_already_activated": true}, notify.Info, TextAlreadyActivated, true},
		{"activated", 200, map[string]any{"resource_is_activated": true}, notify.Success, TextActivated, true},
		{"neither flag", 200, map[string]any{"resource_is_activated": false}, notify.Error, TextActivationInvalid, false},
		{"rejected", 400, map[string]any{"message": "bad code"}, notify.Error, TextActivationInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.backend.On(http.MethodPost, PathActivate, testkit.Reply{Status: tt.status, Body: tt.body})

			_, err := e.panel.Activate(context.Background(), form("email", "a@b.c", "activation_code", "123456"), e.ui())
			require.NoError(t, err)

			notice := testkit.AssertSingleNotice(t, e.notifier)
			assert.Equal(t, tt.kind, notice.Kind)
			assert.Equal(t, tt.text, notice.Text)
			if tt.navigate {
				testkit.AssertTransient(t, notice)
				require.Len(t, e.nav.Navigations(), 1)
				assert.Equal(t, PageLogin, e.nav.Navigations()[0].URL)
				testkit.AssertDisabled(t, e.control)
			} else {
				testkit.AssertPersistent(t, notice)
				assert.Empty(t, e.nav.Navigations())
				testkit.AssertEnabled(t, e.control)
			}
		})
	}
}

func TestRequestResetCodePollsUntilSent(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathRequestResetCode, testkit.Reply{Status: http.StatusOK, Body: map[string]any{}})
	e.backend.On(http.MethodGet, PathResetEmailStatus,
		testkit.Reply{Body: map[string]any{"task_status": "PENDING"}},
		testkit.Reply{Body: map[string]any{"task_status": "PENDING"}},
		testkit.Reply{Body: map[string]any{"task_status": "SUCCESS"}},
	)

	res, err := e.panel.RequestResetCode(context.Background(), form("email", "curator@museum.example"), e.ui())
	require.NoError(t, err)
	assert.True(t, res.Continued)
	testkit.AssertDisabled(t, e.control)

	session := e.panel.Poller().Current()
	require.NotNil(t, session)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	state, err := session.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, poll.Completed, state)

	notice := testkit.AssertSingleNotice(t, e.notifier)
	assert.Equal(t, TextResetRequested, notice.Text)
	testkit.AssertEnabled(t, e.control)

	polls := e.backend.Requests(http.MethodGet, PathResetEmailStatus)
	assert.Len(t, polls, 3)
	assert.Equal(t, "curator@museum.example", polls[0].Query.Get("email"))
}

func TestRequestResetCodeRejected(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathRequestResetCode, testkit.Reply{Status: http.StatusNotFound, Body: map[string]any{"message": "Unknown email."}})

	_, err := e.panel.RequestResetCode(context.Background(), form("email", "x@y.z"), e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Error, "Unknown email.")
	assert.Nil(t, e.panel.Poller().Current())
	testkit.AssertEnabled(t, e.control)
}

func TestResetPassword(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathResetPassword, testkit.Reply{Body: map[string]any{}})

	_, err := e.panel.ResetPassword(context.Background(), form("email", "a@b.c", "password", "newpassword", "reset_code", "999"), e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Success, TextPasswordUpdated)
	assert.Equal(t, PageLogin, e.nav.Navigations()[0].URL)
	assert.Equal(t, "999", e.backend.Requests(http.MethodPost, PathResetPassword)[0].Form.Get("reset_code"))
}

func TestUpdatePassword(t *testing.T) {
	input := form("current_password", "oldpassword", "new_password", "newpassword", "confirm_new_password", "newpassword")

	t.Run("wrong current password", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathUpdatePassword, testkit.Reply{Status: http.StatusUnprocessableEntity, Body: map[string]any{}})

		_, err := e.panel.UpdatePassword(context.Background(), input, e.ui())
		require.NoError(t, err)
		testkit.AssertNotice(t, e.notifier, notify.Error, TextWrongPassword)
		assert.Equal(t, []string{"current_password"}, e.fields.Invalid())

		reqs := e.backend.Requests(http.MethodPost, PathUpdatePassword)
		require.Len(t, reqs, 1)
		assert.Equal(t, "oldpassword", reqs[0].JSON["current_password"])
		assert.Equal(t, "newpassword", reqs[0].JSON["new_password"])
		assert.NotContains(t, reqs[0].JSON, "confirm_new_password")
	})

	t.Run("success goes to dashboard", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathUpdatePassword, testkit.Reply{Body: map[string]any{}})

		_, err := e.panel.UpdatePassword(context.Background(), input, e.ui())
		require.NoError(t, err)
		assert.Equal(t, PageDashboard, e.nav.Navigations()[0].URL)
	})
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathUpdateProfile, testkit.Reply{Body: map[string]any{}})

	_, err := e.panel.UpdateProfile(context.Background(), form("name", "Ana", "surname", "Pop", "telephone", "123"), e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Success, TextProfileUpdated)
	assert.Equal(t, PageProfile, e.nav.Navigations()[0].URL)
	assert.Equal(t, ProfilePictureType, e.backend.Requests(http.MethodPost, PathUpdateProfile)[0].JSON["type"])
}

func TestListTreasures(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, PathTreasureList, testkit.Reply{Body: map[string]any{
		"resource_array": []map[string]any{{"uuid": "t-1"}, {"uuid": "t-2"}},
	}})

	l, err := e.panel.ListTreasures(context.Background(), TreasureQuery{Keyword: "chalice", ExactMatch: true})
	require.NoError(t, err)
	require.Len(t, l.Rows, 2)
	assert.Equal(t, "t-2", l.Rows[1].String("uuid"))
	assert.Empty(t, e.notifier.Notices())

	q := e.backend.Requests(http.MethodGet, PathTreasureList)[0].Query
	assert.Equal(t, "chalice", q.Get("search_keyword"))
	assert.Equal(t, "true", q.Get("exact_match"))
}

func TestListTreasuresLoadError(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, PathTreasureList, testkit.Reply{Status: http.StatusInternalServerError})

	l, err := e.panel.ListTreasures(context.Background(), TreasureQuery{})
	require.NoError(t, err)
	assert.Empty(t, l.Rows)
	testkit.AssertNotice(t, e.notifier, notify.Error, notify.TextLoadError)
	assert.Empty(t, e.backend.Requests(http.MethodGet, PathTreasureList)[0].Query)
}

func TestFetchTreasure(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, PathTreasureFetch, testkit.Reply{Body: map[string]any{
		"resource_obj": map[string]any{"e35_title_en_content": "Silver chalice"},
	}})

	tr, _, err := e.panel.FetchTreasure(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Silver chalice", tr.String("e35_title_en_content"))
	assert.Equal(t, "t-1", e.backend.Requests(http.MethodGet, PathTreasureFetch)[0].Query.Get("treasure_id"))
}

func TestCreateAndUpdateTreasure(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathTreasureCreate, testkit.Reply{Status: http.StatusCreated, Body: map[string]any{}})
	e.backend.On(http.MethodPost, PathTreasureUpdate, testkit.Reply{Status: http.StatusBadRequest, Body: map[string]any{"message": "detail"}})

	fields := map[string]any{"title_en": "Icon", "was_in_church": true}
	_, err := e.panel.CreateTreasure(context.Background(), fields, e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Success, TextTreasureAdded)
	assert.Equal(t, true, e.backend.Requests(http.MethodPost, PathTreasureCreate)[0].JSON["was_in_church"])

	control := &testkit.FakeControl{}
	_, err = e.panel.UpdateTreasure(context.Background(), "t-9", fields, UI{Lock: workflow.NewLock(control)})
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Error, notify.TextGenericError)
	testkit.AssertEnabled(t, control)
	assert.Equal(t, "t-9", e.backend.Requests(http.MethodPost, PathTreasureUpdate)[0].JSON["uuid"])
	assert.NotContains(t, fields, "uuid")
}

func TestDeleteTreasure(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodDelete, PathTreasureDelete, testkit.Reply{Body: map[string]any{}})

	_, err := e.panel.DeleteTreasure(context.Background(), "t-3", e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Success, TextTreasureDeleted)
	assert.Equal(t, PageDashboard, e.nav.Navigations()[0].URL)
	assert.Equal(t, "t-3", e.backend.Requests(http.MethodDelete, PathTreasureDelete)[0].Query.Get("treasure_id"))
}

func TestUploadNewMedia(t *testing.T) {
	input := form("treasure_id", "t-1", "media_type_id", "mt-1", "type", "image")

	t.Run("requires a staged object", func(t *testing.T) {
		e := newEnv(t)
		res, err := e.panel.UploadNewMedia(context.Background(), input, &upload.Slot{}, e.ui())
		require.NoError(t, err)
		require.NotNil(t, res.Validation)
		assert.Equal(t, []string{StagedField}, e.fields.Invalid())
		assert.Equal(t, 0, e.backend.Count(http.MethodPost, PathMediaUploadNew))
	})

	t.Run("commits the slot", func(t *testing.T) {
		e := newEnv(t)
		e.backend.On(http.MethodPost, PathMediaUploadNew, testkit.Reply{Body: map[string]any{}})
		slot := &upload.Slot{}
		slot.Set("srv-1", "x_a.png")

		_, err := e.panel.UploadNewMedia(context.Background(), input, slot, e.ui())
		require.NoError(t, err)

		_, pending := slot.Pending()
		assert.False(t, pending)
		testkit.AssertNotice(t, e.notifier, notify.Success, TextMediaUploaded)
		assert.Equal(t, "/backend/treasures/media/?treasure_id=t-1", e.nav.Navigations()[0].URL)
		assert.Equal(t, "mt-1", e.backend.Requests(http.MethodPost, PathMediaUploadNew)[0].JSON["media_type_id"])
	})
}

func TestUpdateMedia(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, PathMediaUpdate, testkit.Reply{Status: http.StatusServiceUnavailable})
	slot := &upload.Slot{}
	slot.Set("srv-new", "x_b.png")

	_, err := e.panel.UpdateMedia(context.Background(), form("treasure_id", "t-1", "media_id", "m-old"), slot, e.ui())
	require.NoError(t, err)

	body := e.backend.Requests(http.MethodPost, PathMediaUpdate)[0].JSON
	assert.Equal(t, "m-old", body["old_media_id"])
	assert.Equal(t, "srv-new", body["new_media_id"])
	_, pending := slot.Pending()
	assert.True(t, pending)
	testkit.AssertEnabled(t, e.control)
}

func TestDeleteMedia(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodDelete, PathMediaDelete, testkit.Reply{Status: http.StatusBadRequest})

	_, err := e.panel.DeleteMedia(context.Background(), "t-1", "m-1", e.ui())
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Error, TextDeleteError)

	q := e.backend.Requests(http.MethodDelete, PathMediaDelete)[0].Query
	assert.Equal(t, "t-1", q.Get("treasure_id"))
	assert.Equal(t, "m-1", q.Get("media_id"))
}

func TestDiscardStaged(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodDelete, upload.TempDeletePath, testkit.Reply{Body: map[string]any{}})

	_, err := e.panel.DiscardStaged(context.Background(), "abc_a.png")
	require.NoError(t, err)
	testkit.AssertNotice(t, e.notifier, notify.Success, upload.TextDiscarded)
	assert.Empty(t, e.nav.Navigations())
}

func TestFormOverrides(t *testing.T) {
	forms, err := validate.ParseForms([]byte(`
forms:
  create_treasure:
    - {field: title_en, kind: required}
`))
	require.NoError(t, err)
	e := newEnv(t, WithForms(forms))

	res, err := e.panel.CreateTreasure(context.Background(), map[string]any{"title_gr": "x"}, e.ui())
	require.NoError(t, err)
	require.NotNil(t, res.Validation)
	assert.Equal(t, "title_en", e.fields.Focused())
}

func TestParams(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"/backend/treasures/media/?treasure_id=t-1", "t-1", true},
		{"https://host/backend/treasures/update?treasure_id=t%202#top", "t 2", true},
		{"treasure_id=t-3&x=1", "t-3", true},
		{"/backend/dashboard/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParseParams(tt.raw)
			require.NoError(t, err)
			got, ok := p.TreasureID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
