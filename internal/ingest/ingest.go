// Package ingest accepts uploaded extracts and runs them through the merge pipeline.
package ingest

import (
	"context"
	"fmt"
)

// Locator finds the base template a merge starts from.
//
//go:generate mockgen -source=ingest.go -destination=locator_mock.go -package=ingest
type Locator interface {
	Resolve(ctx context.Context) (string, error)
}

// ProcessError reports an upload that was archived but could not be turned into a snapshot.
// The history and latest pointer are unchanged when it is returned.
type ProcessError struct {
	Stored     bool
	StoredName string
	Err        error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("upload stored as %s but not processed: %v", e.StoredName, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
