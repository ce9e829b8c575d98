package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxIdentifierAttempts bounds the sequential probe before falling back
const MaxIdentifierAttempts = 10

// DefaultIdentifierPrefix is used when no prefix is configured
const DefaultIdentifierPrefix = "STU"

var errIdentifierAttemptsExhausted = errors.New("identifier attempts exhausted")

// identifierStore is the part of the student repository the generator needs
type identifierStore interface {
	CountIdentifiersWithPrefix(ctx context.Context, prefix string) (int64, error)
	IdentifierExists(ctx context.Context, studentID string) (bool, error)
}

// IdentifierGenerator produces year-scoped identifiers of the form
// <prefix><yy><seq:04d>, e.g. STU240007.
type IdentifierGenerator struct {
	store  identifierStore
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// NewIdentifierGenerator creates a generator backed by store
func NewIdentifierGenerator(store identifierStore, prefix string, logger zerolog.Logger) *IdentifierGenerator {
	if prefix == "" {
		prefix = DefaultIdentifierPrefix
	}
	return &IdentifierGenerator{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With().Str("component", "identifier_generator").Logger(),
	}
}

// Generate returns a candidate identifier that was free at the time of the
// check. It never fails: store errors and exhausted attempts yield the
// random fallback form instead.
func (g *IdentifierGenerator) Generate(ctx context.Context) string {
	id, err := g.sequential(ctx)
	if err != nil {
		fallback := g.Fallback()
		g.logger.Warn().Err(err).Str("fallback", fallback).Msg("Sequential identifier unavailable, using fallback")
		return fallback
	}
	return id
}

func (g *IdentifierGenerator) sequential(ctx context.Context) (string, error) {
	base := fmt.Sprintf("%s%02d", g.prefix, g.now().Year()%100)

	count, err := g.store.CountIdentifiersWithPrefix(ctx, base)
	if err != nil {
		return "", err
	}

	seq := count + 1
	for attempt := int64(0); attempt < MaxIdentifierAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%04d", base, seq+attempt)
		exists, err := g.store.IdentifierExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		g.logger.Debug().Str("candidate", candidate).Msg("Identifier taken, probing next")
	}
	return "", errIdentifierAttemptsExhausted
}

// Fallback returns <prefix> followed by 8 upper-case hex characters of a random UUID
func (g *IdentifierGenerator) Fallback() string {
	return g.prefix + strings.ToUpper(uuid.NewString()[:8])
}
