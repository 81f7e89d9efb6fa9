package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttle-ticket/utils"
)

const (
	FolioStrategyRandom   = "random"
	FolioStrategySequence = "sequence"

	folioRandomLength = 6
)

// FolioGenerator produces candidate folios. Uniqueness is enforced by the
// ledger, so a generator may return a value that is already taken.
type FolioGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// RandomFolioGenerator yields "{PREFIX}-{YEAR}-{6 base36 chars}".
type RandomFolioGenerator struct {
	Prefix string
}

func (g RandomFolioGenerator) Next(_ context.Context, at time.Time) (string, error) {
	suffix, err := utils.GenerateBase36(folioRandomLength)
	if err != nil {
		return "", fmt.Errorf("folio: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", g.Prefix, at.Year(), suffix), nil
}

// RedisFolioSequence yields "{PREFIX}-{YEAR}-{%06d}" from a per-year counter.
type RedisFolioSequence struct {
	redis  redis.Cmdable
	prefix string
}

func NewRedisFolioSequence(client redis.Cmdable, prefix string) *RedisFolioSequence {
	return &RedisFolioSequence{redis: client, prefix: prefix}
}

func folioSequenceKey(year int) string {
	return fmt.Sprintf("folio:seq:%d", year)
}

func (g *RedisFolioSequence) Next(ctx context.Context, at time.Time) (string, error) {
	n, err := g.redis.Incr(ctx, folioSequenceKey(at.Year())).Result()
	if err != nil {
		return "", fmt.Errorf("folio: next sequence: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", g.prefix, at.Year(), n), nil
}

// NewFolioGenerator picks the generator for a configured strategy. The
// sequence strategy needs a Redis client.
func NewFolioGenerator(strategy, prefix string, client redis.Cmdable) (FolioGenerator, error) {
	switch strategy {
	case "", FolioStrategyRandom:
		return RandomFolioGenerator{Prefix: prefix}, nil
	case FolioStrategySequence:
		if client == nil {
			return nil, fmt.Errorf("folio: %q strategy requires redis", strategy)
		}
		return NewRedisFolioSequence(client, prefix), nil
	}
	return nil, fmt.Errorf("folio: unknown strategy %q", strategy)
}
