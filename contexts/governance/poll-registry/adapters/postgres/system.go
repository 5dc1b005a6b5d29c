package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock stamps poll, vote and outbox times in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator issues event and outbox identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
