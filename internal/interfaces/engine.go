package interfaces

import (
	"context"

	"llm-dealer/internal/types"
)

type Processor interface {
	Process(ctx context.Context, bar types.Bar, news string) types.StepResult
}
