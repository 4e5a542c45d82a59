package action

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		name          string
		resp          *Response
		err           error
		wantKind      Kind
		wantMalformed bool
		wantMessage   string
	}{
		{
			name:     "created with body",
			resp:     &Response{Status: http.StatusCreated, Body: []byte(`{"message":"ok"}`)},
			wantKind: KindSuccess, wantMessage: "ok",
		},
		{
			name:     "no content",
			resp:     &Response{Status: http.StatusNoContent},
			wantKind: KindSuccess,
		},
		{
			name:     "2xx malformed body degrades to empty body",
			resp:     &Response{Status: http.StatusOK, Body: []byte(`{"broken"`)},
			wantKind: KindSuccess, wantMalformed: true,
		},
		{
			name:     "2xx json array is not an object",
			resp:     &Response{Status: http.StatusOK, Body: []byte(`[1,2]`)},
			wantKind: KindSuccess, wantMalformed: true,
		},
		{
			name:     "conflict keeps message",
			resp:     &Response{Status: http.StatusConflict, Body: []byte(`{"message":"exists"}`)},
			wantKind: KindClientError, wantMessage: "exists",
		},
		{
			name:     "4xx html body",
			resp:     &Response{Status: http.StatusForbidden, Body: []byte(`<html>`)},
			wantKind: KindClientError, wantMalformed: true,
		},
		{
			name:     "redirect counts as client error",
			resp:     &Response{Status: http.StatusFound},
			wantKind: KindClientError,
		},
		{
			name:     "server error",
			resp:     &Response{Status: http.StatusInternalServerError, Body: []byte(`{"message":"trace"}`)},
			wantKind: KindServerError, wantMessage: "trace",
		},
		{
			name:     "transport failure",
			err:      errors.New("connection refused"),
			wantKind: KindNetworkError,
		},
		{
			name:     "nil response without error",
			wantKind: KindNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Interpret(tt.resp, tt.err)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantMalformed, out.Malformed)
			assert.Equal(t, tt.wantMessage, out.Message())
			require.NotNil(t, out.Body)
			if tt.wantKind == KindNetworkError {
				assert.Error(t, out.Err)
			}
		})
	}
}

func TestOutcomeAsError(t *testing.T) {
	assert.NoError(t, Outcome{Kind: KindSuccess, Body: Body{}}.AsError())

	cause := errors.New("timeout")
	err := Outcome{Kind: KindNetworkError, Body: Body{}, Err: cause}.AsError()
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var statusErr *StatusError
	err = Outcome{Kind: KindClientError, Status: 422, Body: Body{"message": "wrong password"}}.AsError()
	require.ErrorAs(t, err, &statusErr)
	assert.Contains(t, err.Error(), "wrong password")
}

func TestInterpretInvalidRequest(t *testing.T) {
	err := fmt.Errorf("%w: failed to create request: bad url", ErrInvalidRequest)

	out := Interpret(nil, err)

	assert.Equal(t, KindClientError, out.Kind)
	assert.Zero(t, out.Status)
	assert.NotNil(t, out.Body)
	assert.ErrorIs(t, out.AsError(), ErrInvalidRequest)
	assert.Contains(t, out.AsError().Error(), "failed to create request")
}

func TestBodyAccessors(t *testing.T) {
	out := Interpret(&Response{Status: 200, Body: []byte(`{
		"resource_is_activated": true,
		"already_exists_fields": ["email", 3],
		"resource_obj": {"uuid": "abc"},
		"resource_array": [{"id": 1}, "skip"],
		"count": 2
	}`)}, nil)

	assert.True(t, out.Body.Bool("resource_is_activated"))
	assert.False(t, out.Body.Bool("missing"))
	assert.Equal(t, []string{"email"}, out.Body.Strings("already_exists_fields"))
	assert.True(t, out.Body.Contains("already_exists_fields", "email"))
	assert.Equal(t, "abc", out.Body.Object("resource_obj").String("uuid"))
	assert.Empty(t, out.Body.Object("missing"))
	assert.Len(t, out.Body.Objects("resource_array"), 1)
	assert.Equal(t, "2", out.Body.String("count"))
}

func TestBodyStringFormatsNumbers(t *testing.T) {
	out := Interpret(&Response{Status: 200, Body: []byte(`{
		"size": 1000000,
		"ratio": 0.25,
		"big": 12345678901234567,
		"flag": false
	}`)}, nil)

	assert.Equal(t, "1000000", out.Body.String("size"))
	assert.Equal(t, "0.25", out.Body.String("ratio"))
	assert.Equal(t, "12345678901234568", out.Body.String("big"))
	assert.Equal(t, "false", out.Body.String("flag"))
}
