package backend

import (
	"context"

	"github.com/slok/deploywatch/internal/model"
)

//go:generate mockery --case underscore --output backendmock --outpkg backendmock --name Client --structname MockClient

// Client is the interface of the backends that run operations.
type Client interface {
	// Launch starts an operation and returns its ID.
	Launch(ctx context.Context, req model.LaunchRequest) (string, error)
	// FetchLogs returns the full accumulated log buffer of an operation, never a delta.
	FetchLogs(ctx context.Context, operationID string) (model.LogSnapshot, error)
}
