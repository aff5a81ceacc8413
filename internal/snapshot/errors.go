package snapshot

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPoolFamily is returned for pool types outside the supported
// AMM families. It is never retried on another provider.
var ErrUnsupportedPoolFamily = errors.New("unsupported pool family")

// ResolveError describes a failed snapshot resolution.
type ResolveError struct {
	Address string
	Chain   string
	StartTs int64
	EndTs   int64
	Source  string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve pool %s on %s [%d, %d] via %s: %v",
		e.Address, e.Chain, e.StartTs, e.EndTs, e.Source, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
