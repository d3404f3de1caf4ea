package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
)

func upload(filename, body string) *usecase.UploadInput {
	return &usecase.UploadInput{
		Filename:    filename,
		ContentType: "audio/mpeg",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestMeeting_Upload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()

	meeting, err := f.uc.Meeting.Upload(ctx, userID, upload("standup.mp3", "ID3 audio bytes"))
	gt.NoError(t, err).Required()

	gt.Value(t, meeting.Title).Equal("standup")
	gt.Value(t, meeting.Status).Equal(types.MeetingStatusPending)
	gt.Value(t, meeting.Audio.Format).Equal("mp3")
	gt.Value(t, meeting.Audio.Size).Equal(int64(15))
	gt.Value(t, meeting.Audio.Duration).Equal(42.5)
	gt.Bool(t, strings.HasPrefix(meeting.Audio.Key, string(userID)+"/")).True()

	objects, err := f.storage.List(ctx, string(userID))
	gt.NoError(t, err).Required()
	gt.Array(t, objects).Length(1)

	gt.Array(t, f.scheduler.jobs).Length(1).Required()
	gt.Value(t, f.scheduler.jobs[0].Key).Equal(string(meeting.ID))

	stored, err := f.repo.Meeting().Get(ctx, meeting.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, stored.Status).Equal(types.MeetingStatusPending)
}

func TestMeeting_UploadRejectsInvalidFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()

	_, err := f.uc.Meeting.Upload(ctx, userID, upload("notes.txt", "hello"))
	gt.Error(t, err).Is(model.ErrFileValidation)

	_, err = f.uc.Meeting.Upload(ctx, userID, upload("empty.wav", ""))
	gt.Error(t, err).Is(model.ErrValidation)

	count, err := f.repo.Meeting().Count(ctx, userID)
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(0)
	gt.Array(t, f.scheduler.jobs).Length(0)
}

func TestMeeting_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := model.NewUserID()
	m := f.meeting(t, owner)

	_, err := f.uc.Meeting.Get(ctx, model.NewUserID(), m.ID)
	gt.Error(t, err).Is(model.ErrNotFound)

	err = f.uc.Meeting.Delete(ctx, model.NewUserID(), m.ID)
	gt.Error(t, err).Is(model.ErrNotFound)

	got, err := f.uc.Meeting.Get(ctx, owner, m.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.ID).Equal(m.ID)
}

func TestMeeting_ListReportsTrueTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()
	for range 5 {
		f.meeting(t, userID)
	}
	f.meeting(t, model.NewUserID())

	page, err := f.uc.Meeting.List(ctx, userID, model.Pagination{Offset: 0, Limit: 2}, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, page.Items).Length(2)
	gt.Value(t, page.Total).Equal(5)
	gt.Value(t, page.Limit).Equal(2)

	failed := types.MeetingStatusFailed
	page, err = f.uc.Meeting.List(ctx, userID, model.Pagination{}, &failed)
	gt.NoError(t, err).Required()
	gt.Array(t, page.Items).Length(0)
	gt.Value(t, page.Total).Equal(0)
	gt.Value(t, page.Limit).Equal(model.DefaultPageLimit)
}

func TestMeeting_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()
	m := f.meeting(t, userID)

	title := "Planning"
	desc := "Q4 roadmap"
	updated, err := f.uc.Meeting.Update(ctx, userID, m.ID, &usecase.MeetingUpdate{Title: &title, Description: &desc})
	gt.NoError(t, err).Required()
	gt.Value(t, updated.Title).Equal("Planning")
	gt.Value(t, updated.Description).Equal("Q4 roadmap")

	blank := "  "
	_, err = f.uc.Meeting.Update(ctx, userID, m.ID, &usecase.MeetingUpdate{Title: &blank})
	gt.Error(t, err).Is(model.ErrValidation)
}

func TestMeeting_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()

	m, err := f.uc.Meeting.Upload(ctx, userID, upload("standup.mp3", "ID3 audio bytes"))
	gt.NoError(t, err).Required()
	f.task(t, m, "Send report", types.TaskStatusDraft)
	_, err = f.repo.Transcript().Create(ctx, &model.Transcript{MeetingID: m.ID, FullText: "hello"})
	gt.NoError(t, err).Required()

	gt.NoError(t, f.uc.Meeting.Delete(ctx, userID, m.ID)).Required()

	stored, err := f.repo.Meeting().Get(ctx, m.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, stored == nil).True()

	tasks, err := f.repo.Task().ListByMeeting(ctx, m.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(0)

	transcript, err := f.repo.Transcript().GetByMeeting(ctx, m.ID)
	gt.NoError(t, err).Required()
	gt.Bool(t, transcript == nil).True()

	objects, err := f.storage.List(ctx, string(userID))
	gt.NoError(t, err).Required()
	gt.Array(t, objects).Length(0)
}

func TestMeeting_StatusAndReprocess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := model.NewUserID()
	m := f.meeting(t, userID)

	status, err := f.uc.Meeting.Status(ctx, userID, m.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, status.Status).Equal(types.MeetingStatusCompleted)

	_, err = f.uc.Meeting.Reprocess(ctx, userID, m.ID)
	gt.Error(t, err).Is(model.ErrConflict)

	gt.NoError(t, f.repo.Meeting().UpdateProgress(ctx, m.ID, &model.MeetingProgress{
		Status:       types.MeetingStatusFailed,
		Progress:     20,
		ErrorMessage: "transcription failed",
	})).Required()

	reprocessed, err := f.uc.Meeting.Reprocess(ctx, userID, m.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, reprocessed.Status).Equal(types.MeetingStatusPending)
	gt.Value(t, reprocessed.ErrorMessage).Equal("")
	gt.Value(t, reprocessed.Progress).Equal(20)
	gt.Array(t, f.scheduler.jobs).Length(1)
}
