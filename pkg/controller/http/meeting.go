package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
	"github.com/secmon-lab/meetscribe/pkg/utils/safe"
)

// in-memory part of a multipart upload; the rest spills to temporary files
const multipartMemory = 32 << 20

func meetingID(r *http.Request) model.MeetingID {
	return model.MeetingID(chi.URLParam(r, "meetingID"))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, toUser(userFromContext(r.Context())))
}

func (s *Server) handleUploadMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleError(ctx, w, goerr.Wrap(model.ErrFileValidation, "file size exceeds limit", goerr.V("limit", s.maxUploadSize)))
			return
		}
		s.handleError(ctx, w, goerr.Wrap(model.ErrValidation, "invalid multipart form", goerr.V("reason", err.Error())))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.handleError(ctx, w, goerr.Wrap(model.ErrFileValidation, "file is required"))
		return
	}
	defer safe.Close(ctx, file)

	meeting, err := s.uc.Meeting.Upload(ctx, user.ID, &usecase.UploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, toMeeting(meeting))
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePagination(r)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	var status *types.MeetingStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := types.ParseMeetingStatus(raw)
		if err != nil {
			s.handleError(ctx, w, goerr.Wrap(model.ErrValidation, err.Error()))
			return
		}
		status = &parsed
	}

	meetings, err := s.uc.Meeting.List(ctx, userFromContext(ctx).ID, page, status)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toPage(meetings, toMeeting))
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meeting, err := s.uc.Meeting.Get(ctx, userFromContext(ctx).ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toMeeting(meeting))
}

type updateMeetingRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateMeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	meeting, err := s.uc.Meeting.Update(ctx, userFromContext(ctx).ID, meetingID(r), &usecase.MeetingUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toMeeting(meeting))
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.uc.Meeting.Delete(ctx, userFromContext(ctx).ID, meetingID(r)); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMeetingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := s.uc.Meeting.Status(ctx, userFromContext(ctx).ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, status)
}

func (s *Server) handleReprocessMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meeting, err := s.uc.Meeting.Reprocess(ctx, userFromContext(ctx).ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, toMeeting(meeting))
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transcript, err := s.uc.Transcript.Get(ctx, userFromContext(ctx).ID, meetingID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toTranscript(transcript))
}

type speakerNameRequest struct {
	SpeakerName string `json:"speaker_name"`
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req speakerNameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	segmentID := model.SegmentID(chi.URLParam(r, "segmentID"))
	segment, err := s.uc.Transcript.UpdateSpeakerName(ctx, userFromContext(ctx).ID, meetingID(r), segmentID, req.SpeakerName)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toSegment(segment))
}

type renameSpeakerRequest struct {
	SpeakerLabel string `json:"speaker_label"`
	SpeakerName  string `json:"speaker_name"`
}

func (s *Server) handleRenameSpeaker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req renameSpeakerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	changed, err := s.uc.Transcript.RenameSpeaker(ctx, userFromContext(ctx).ID, meetingID(r), req.SpeakerLabel, req.SpeakerName)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]int{"updated": changed})
}
