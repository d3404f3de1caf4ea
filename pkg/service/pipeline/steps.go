package pipeline

import "github.com/secmon-lab/meetscribe/pkg/domain/types"

// Step is a stage of meeting processing with the state persisted before it runs
type Step struct {
	Name     string
	Status   types.MeetingStatus
	Progress int
	Message  string
}

var (
	StepPrepare    = Step{Name: "prepare", Status: types.MeetingStatusProcessing, Progress: 5, Message: "Preparing audio file..."}
	StepTranscribe = Step{Name: "transcribe", Status: types.MeetingStatusTranscribing, Progress: 20, Message: "Transcribing audio..."}
	StepRedact     = Step{Name: "redact", Status: types.MeetingStatusProcessing, Progress: 50, Message: "Redacting sensitive information..."}
	StepExtract    = Step{Name: "extract", Status: types.MeetingStatusExtracting, Progress: 70, Message: "Extracting action items..."}
	StepPersist    = Step{Name: "persist", Status: types.MeetingStatusProcessing, Progress: 85, Message: "Processing extracted tasks..."}
	StepDone       = Step{Name: "done", Status: types.MeetingStatusCompleted, Progress: 100, Message: "Processing complete!"}
)

// Steps returns the stages in execution order
func Steps() []Step {
	return []Step{StepPrepare, StepTranscribe, StepRedact, StepExtract, StepPersist, StepDone}
}

const failedMessage = "Processing failed"
