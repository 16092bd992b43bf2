package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoData is wrapped by providers that reached their source but found no bars.
var ErrNoData = errors.New("no data")

// DataFetchError reports a failed or empty provider fetch. It is non-fatal:
// callers degrade to an empty history.
type DataFetchError struct {
	Symbol        string
	Period        Period
	ReferenceDate time.Time
	Cause         error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch %s period %s as of %s: %v",
		e.Symbol, e.Period, e.ReferenceDate.Format("2006-01-02"), e.Cause)
}

func (e *DataFetchError) Unwrap() error { return e.Cause }
