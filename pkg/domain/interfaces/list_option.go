package interfaces

import (
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

// ListMeetingOption is a functional option for filtering meetings in List and Count
type ListMeetingOption func(*listMeetingConfig)

type listMeetingConfig struct {
	status *types.MeetingStatus
}

// WithMeetingStatus filters meetings by status
func WithMeetingStatus(status types.MeetingStatus) ListMeetingOption {
	return func(c *listMeetingConfig) {
		c.status = &status
	}
}

// BuildListMeetingConfig builds a listMeetingConfig from options
func BuildListMeetingConfig(opts ...ListMeetingOption) *listMeetingConfig {
	cfg := &listMeetingConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Status returns the status filter value, or nil if not set
func (c *listMeetingConfig) Status() *types.MeetingStatus {
	return c.status
}

// Match reports whether a meeting passes the filter
func (c *listMeetingConfig) Match(m *model.Meeting) bool {
	return c.status == nil || m.Status == *c.status
}

// ListTaskOption is a functional option for filtering tasks in List and Count
type ListTaskOption func(*listTaskConfig)

type listTaskConfig struct {
	status    *types.TaskStatus
	priority  *types.TaskPriority
	meetingID *model.MeetingID
}

// WithTaskStatus filters tasks by status
func WithTaskStatus(status types.TaskStatus) ListTaskOption {
	return func(c *listTaskConfig) {
		c.status = &status
	}
}

// WithTaskPriority filters tasks by priority
func WithTaskPriority(priority types.TaskPriority) ListTaskOption {
	return func(c *listTaskConfig) {
		c.priority = &priority
	}
}

// WithTaskMeetingID filters tasks by meeting
func WithTaskMeetingID(id model.MeetingID) ListTaskOption {
	return func(c *listTaskConfig) {
		c.meetingID = &id
	}
}

// BuildListTaskConfig builds a listTaskConfig from options
func BuildListTaskConfig(opts ...ListTaskOption) *listTaskConfig {
	cfg := &listTaskConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Status returns the status filter value, or nil if not set
func (c *listTaskConfig) Status() *types.TaskStatus {
	return c.status
}

// Priority returns the priority filter value, or nil if not set
func (c *listTaskConfig) Priority() *types.TaskPriority {
	return c.priority
}

// MeetingID returns the meeting filter value, or nil if not set
func (c *listTaskConfig) MeetingID() *model.MeetingID {
	return c.meetingID
}

// Match reports whether a task passes the filter
func (c *listTaskConfig) Match(t *model.Task) bool {
	if c.status != nil && t.Status != *c.status {
		return false
	}
	if c.priority != nil && t.Priority != *c.priority {
		return false
	}
	if c.meetingID != nil && t.MeetingID != *c.meetingID {
		return false
	}
	return true
}
