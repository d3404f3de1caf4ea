package usecase

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/utils/errutil"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
)

const queuedMessage = "Queued for processing"

type MeetingUseCase struct {
	repo      interfaces.Repository
	storage   interfaces.Storage
	scheduler interfaces.Scheduler
	processor MeetingProcessor
	audio     interfaces.AudioProcessor
	validator *audio.Validator
}

// UploadInput is an audio upload together with the meeting metadata
type UploadInput struct {
	Title       string
	Description string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MeetingUpdate holds the editable fields of a meeting. Nil fields are left unchanged.
type MeetingUpdate struct {
	Title       *string
	Description *string
}

// Upload validates and stores the audio, creates the meeting and schedules its
// processing. It returns as soon as the job is scheduled.
func (uc *MeetingUseCase) Upload(ctx context.Context, userID model.UserID, in *UploadInput) (*model.Meeting, error) {
	if uc.storage == nil {
		return nil, goerr.New("file storage is not configured")
	}

	format, err := uc.validator.Validate(in.Filename, in.ContentType, in.Size)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))
	}

	key := audio.NewKey(userID, format)
	meeting, err := uc.repo.Meeting().Create(ctx, &model.Meeting{
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		Audio: model.AudioFile{
			Key:      key,
			Filename: in.Filename,
			Size:     in.Size,
			Format:   format,
		},
		Status:        types.MeetingStatusUploading,
		StatusMessage: "Uploading audio",
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create meeting")
	}

	logger := logging.From(ctx).With(MeetingIDKey, meeting.ID)

	written, err := uc.storage.Put(ctx, key, in.Body)
	if err != nil {
		if delErr := uc.repo.Meeting().Delete(ctx, meeting.ID); delErr != nil {
			errutil.Handle(ctx, delErr, "failed to roll back meeting after upload failure")
		}
		return nil, goerr.Wrap(model.NewCapabilityError(model.CapabilityStorage, err), "failed to store audio",
			goerr.V(MeetingIDKey, meeting.ID))
	}

	meeting.Audio.Size = written
	meeting.Audio.Duration = uc.probe(ctx, key)
	updated, err := uc.repo.Meeting().Update(ctx, meeting)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update meeting audio", goerr.V(MeetingIDKey, meeting.ID))
	}
	meeting = updated

	if err := uc.schedule(ctx, meeting); err != nil {
		return nil, err
	}

	logger.Info("meeting uploaded", "size", written, "format", format)
	return meeting, nil
}

// probe returns the audio duration, or 0 when it cannot be determined
func (uc *MeetingUseCase) probe(ctx context.Context, key string) float64 {
	if uc.audio == nil {
		return 0
	}

	path, release, err := uc.storage.Path(ctx, key)
	if err != nil {
		logging.From(ctx).Warn("failed to open stored audio", "key", key, "error", err.Error())
		return 0
	}
	defer release()

	duration, err := uc.audio.Duration(ctx, path)
	if err != nil {
		logging.From(ctx).Warn("failed to probe audio duration", "key", key, "error", err.Error())
		return 0
	}
	return duration
}

func (uc *MeetingUseCase) schedule(ctx context.Context, meeting *model.Meeting) error {
	progress := &model.MeetingProgress{
		Status:        types.MeetingStatusPending,
		StatusMessage: queuedMessage,
		Progress:      meeting.Progress,
	}
	if err := uc.repo.Meeting().UpdateProgress(ctx, meeting.ID, progress); err != nil {
		return goerr.Wrap(err, "failed to queue meeting", goerr.V(MeetingIDKey, meeting.ID))
	}
	progress.Apply(meeting)

	if uc.scheduler == nil || uc.processor == nil {
		logging.From(ctx).Warn("no scheduler configured, meeting stays pending", MeetingIDKey, meeting.ID)
		return nil
	}
	if err := uc.scheduler.Schedule(ctx, uc.processor.Job(meeting.ID)); err != nil {
		return goerr.Wrap(err, "failed to schedule meeting processing", goerr.V(MeetingIDKey, meeting.ID))
	}
	return nil
}

// Get returns a meeting of the user
func (uc *MeetingUseCase) Get(ctx context.Context, userID model.UserID, id model.MeetingID) (*model.Meeting, error) {
	meeting, err := uc.repo.Meeting().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get meeting", goerr.V(MeetingIDKey, id))
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, goerr.Wrap(ErrMeetingNotFound, "meeting not found", goerr.V(MeetingIDKey, id))
	}
	return meeting, nil
}

// List returns a page of the user's meetings, newest first, with the total number of
// meetings matching the filter
func (uc *MeetingUseCase) List(ctx context.Context, userID model.UserID, page model.Pagination, status *types.MeetingStatus) (*model.Page[*model.Meeting], error) {
	page = page.Normalize()

	var opts []interfaces.ListMeetingOption
	if status != nil {
		opts = append(opts, interfaces.WithMeetingStatus(*status))
	}

	meetings, err := uc.repo.Meeting().List(ctx, userID, page, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list meetings")
	}
	total, err := uc.repo.Meeting().Count(ctx, userID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count meetings")
	}

	return &model.Page[*model.Meeting]{
		Items:  meetings,
		Total:  total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

func (uc *MeetingUseCase) Update(ctx context.Context, userID model.UserID, id model.MeetingID, in *MeetingUpdate) (*model.Meeting, error) {
	meeting, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, goerr.Wrap(model.ErrValidation, "meeting title must not be empty")
		}
		meeting.Title = title
	}
	if in.Description != nil {
		meeting.Description = *in.Description
	}

	updated, err := uc.repo.Meeting().Update(ctx, meeting)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update meeting", goerr.V(MeetingIDKey, id))
	}
	return updated, nil
}

// Delete removes the meeting with its transcript and tasks, then its audio object.
// Failing to delete the audio does not fail the call.
func (uc *MeetingUseCase) Delete(ctx context.Context, userID model.UserID, id model.MeetingID) error {
	meeting, err := uc.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := uc.repo.Task().DeleteByMeeting(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete tasks of meeting", goerr.V(MeetingIDKey, id))
	}
	if err := uc.repo.Transcript().DeleteByMeeting(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete transcript of meeting", goerr.V(MeetingIDKey, id))
	}
	if err := uc.repo.Meeting().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete meeting", goerr.V(MeetingIDKey, id))
	}

	if meeting.Audio.Key != "" && uc.storage != nil {
		if err := uc.storage.Delete(ctx, meeting.Audio.Key); err != nil {
			errutil.Handle(ctx, goerr.Wrap(err, "failed to delete audio",
				goerr.V(MeetingIDKey, id), goerr.V("key", meeting.Audio.Key)), "audio object left behind")
		}
	}

	logging.From(ctx).Info("meeting deleted", MeetingIDKey, id)
	return nil
}

// Status returns the processing state of a meeting
func (uc *MeetingUseCase) Status(ctx context.Context, userID model.UserID, id model.MeetingID) (*model.StatusUpdate, error) {
	meeting, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &model.StatusUpdate{
		MeetingID: meeting.ID,
		Status:    meeting.Status,
		Message:   meeting.StatusMessage,
		Progress:  meeting.Progress,
	}, nil
}

// Reprocess schedules processing of a failed or never started meeting again. The audio
// must still be available.
func (uc *MeetingUseCase) Reprocess(ctx context.Context, userID model.UserID, id model.MeetingID) (*model.Meeting, error) {
	meeting, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !meeting.Status.CanStart() {
		return nil, goerr.Wrap(ErrMeetingNotReprocessable, "meeting cannot be reprocessed",
			goerr.V(MeetingIDKey, id), goerr.V("status", meeting.Status))
	}
	if meeting.Audio.Key == "" {
		return nil, goerr.Wrap(model.ErrValidation, "audio of the meeting has been removed", goerr.V(MeetingIDKey, id))
	}

	if err := uc.schedule(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}
