package interfaces

import "context"

type NewsSource interface {
	Latest(ctx context.Context, symbol string) (string, error)
}
