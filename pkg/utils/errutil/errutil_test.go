package errutil_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/utils/errutil"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", goerr.Wrap(model.ErrNotFound, "x"), http.StatusNotFound},
		{"validation", goerr.Wrap(model.ErrFileValidation, "x"), http.StatusBadRequest},
		{"conflict", goerr.Wrap(model.ErrConflict, "x"), http.StatusConflict},
		{"audio", model.NewCapabilityError(model.CapabilityAudio, errors.New("x")), http.StatusUnprocessableEntity},
		{"transcription", model.NewCapabilityError(model.CapabilityTranscription, errors.New("x")), http.StatusInternalServerError},
		{"unexpected", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, errutil.StatusCode(tt.err)).Equal(tt.want)
		})
	}
}

func TestHandleHTTP_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	errutil.HandleHTTP(context.Background(), w, errors.New("db password=hunter2"), false)

	gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
	var body errutil.ErrorBody
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
	gt.Value(t, body.Error.Code).Equal("INTERNAL_ERROR")
	gt.Value(t, body.Error.Message).Equal("internal server error")
}

func TestHandleHTTP_KeepsClientErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	errutil.HandleHTTP(context.Background(), w, goerr.Wrap(model.ErrNotFound, "meeting not found"), false)

	gt.Value(t, w.Code).Equal(http.StatusNotFound)
	var body errutil.ErrorBody
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
	gt.Value(t, body.Error.Code).Equal("NOT_FOUND")
	gt.String(t, body.Error.Message).Contains("meeting not found")
}

func TestHandle_ReturnsSameError(t *testing.T) {
	err := errors.New("x")
	gt.Value(t, errutil.Handle(context.Background(), err, "failed")).Equal(err)
	gt.NoError(t, errutil.Handle(context.Background(), nil, "noop"))
}

func TestHandle_ReportsValuesAsContext(t *testing.T) {
	var captured *sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			captured = event
			return nil
		},
	})
	gt.NoError(t, err).Required()
	hub := sentry.NewHub(client, sentry.NewScope())
	ctx := sentry.SetHubOnContext(context.Background(), hub)

	cause := goerr.Wrap(model.ErrNotFound, "meeting not found", goerr.V("meeting_id", "m1"))
	_ = errutil.Handle(ctx, cause, "failed to load meeting")

	gt.Bool(t, captured != nil).True()
	gt.Value(t, captured.Tags["message"]).Equal("failed to load meeting")
	gt.Value(t, captured.Contexts["values"]["meeting_id"]).Equal(any("m1"))
}
