package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

func TestTaskStatus_IsValid(t *testing.T) {
	for _, s := range types.AllTaskStatuses() {
		gt.Bool(t, s.IsValid()).True()
	}
	gt.Bool(t, types.TaskStatus("archived").IsValid()).False()

	_, err := types.ParseTaskStatus("")
	gt.Error(t, err)
}

func TestNormalizeTaskPriority(t *testing.T) {
	tests := []struct {
		hint string
		want types.TaskPriority
	}{
		{"high", types.TaskPriorityHigh},
		{"High", types.TaskPriorityHigh},
		{"urgent", types.TaskPriorityUrgent},
		{" critical ", types.TaskPriorityUrgent},
		{"low", types.TaskPriorityLow},
		{"minor", types.TaskPriorityLow},
		{"medium", types.TaskPriorityMedium},
		{"", types.TaskPriorityMedium},
		{"whenever", types.TaskPriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			gt.Value(t, types.NormalizeTaskPriority(tt.hint)).Equal(tt.want)
		})
	}
}

func TestParseIntegrationType(t *testing.T) {
	v, err := types.ParseIntegrationType("trello")
	gt.NoError(t, err)
	gt.Value(t, v).Equal(types.IntegrationTypeTrello)

	_, err = types.ParseIntegrationType("linear")
	gt.Error(t, err)
}

func TestPIIType_Placeholder(t *testing.T) {
	gt.Value(t, types.PIITypeEmail.Placeholder()).Equal("[EMAIL_REDACTED]")
	gt.Value(t, types.PIITypeCreditCard.Placeholder()).Equal("[CREDIT_CARD_REDACTED]")
}
