package interfaces

import "context"

// Model turns a rendered decision context into raw reply text.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
