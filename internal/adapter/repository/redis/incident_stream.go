package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dlpstream/collector/internal/domain"
)

// IncidentStream implements domain.IncidentPublisher using a Redis Stream.
// One entry is appended per incident; entries are never updated or deleted
// by the collector.
type IncidentStream struct {
	client    *redis.Client
	logger    *slog.Logger
	streamKey string
	maxLen    int64
}

// NewIncidentStream creates a stream publisher. maxLen > 0 enables
// approximate trimming on each add so the stream cannot grow without bound.
func NewIncidentStream(client *redis.Client, logger *slog.Logger, streamKey string, maxLen int64) *IncidentStream {
	return &IncidentStream{
		client:    client,
		logger:    logger.With("component", "incident_stream"),
		streamKey: streamKey,
		maxLen:    maxLen,
	}
}

// Publish appends one incident to the stream. Errors propagate to the
// caller; publishing is not best-effort.
func (s *IncidentStream) Publish(ctx context.Context, incident domain.Incident) error {
	args := &redis.XAddArgs{
		Stream: s.streamKey,
		Values: incident.StreamFields(),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to XADD incident %s to stream %s: %w", incident.ID, s.streamKey, err)
	}
	s.logger.Debug("published incident to stream", "incident_id", incident.ID, "stream_id", id)
	return nil
}
