package settings

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("settings: not found")

type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) ([]Setting, error)
}
