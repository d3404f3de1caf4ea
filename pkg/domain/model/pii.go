package model

import "github.com/secmon-lab/meetscribe/pkg/domain/types"

// PIIEntity is a detected sensitive span in a text. Start and End are byte offsets.
type PIIEntity struct {
	Type       types.PIIType
	Start      int
	End        int
	Confidence float64
}
