package interfaces

import (
	"context"

	"llm-dealer/internal/types"
)

type Recorder interface {
	Record(ctx context.Context, res types.StepResult) error
}
