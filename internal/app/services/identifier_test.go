package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentifiers struct {
	count      int64
	countErr   error
	taken      map[string]bool
	existsErr  error
	prefixSeen string
	probes     []string
}

func (f *fakeIdentifiers) CountIdentifiersWithPrefix(_ context.Context, prefix string) (int64, error) {
	f.prefixSeen = prefix
	return f.count, f.countErr
}

func (f *fakeIdentifiers) IdentifierExists(_ context.Context, id string) (bool, error) {
	f.probes = append(f.probes, id)
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.taken[id], nil
}

func newTestGenerator(store identifierStore) *IdentifierGenerator {
	g := NewIdentifierGenerator(store, "STU", zerolog.New(io.Discard))
	g.now = func() time.Time { return time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateFirstOfYear(t *testing.T) {
	store := &fakeIdentifiers{}
	g := newTestGenerator(store)

	assert.Equal(t, "STU240001", g.Generate(context.Background()))
	assert.Equal(t, "STU24", store.prefixSeen)
}

func TestGenerateSkipsTakenCandidates(t *testing.T) {
	store := &fakeIdentifiers{
		count: 5,
		taken: map[string]bool{"STU240006": true, "STU240007": true},
	}
	g := newTestGenerator(store)

	assert.Equal(t, "STU240008", g.Generate(context.Background()))
	assert.Equal(t, []string{"STU240006", "STU240007", "STU240008"}, store.probes)
}

func TestGenerateWidensPastFourDigits(t *testing.T) {
	g := newTestGenerator(&fakeIdentifiers{count: 9999})

	assert.Equal(t, "STU2410000", g.Generate(context.Background()))
}

func TestGenerateFallsBackWhenAttemptsExhausted(t *testing.T) {
	taken := map[string]bool{}
	for i := 1; i <= MaxIdentifierAttempts; i++ {
		taken[fmt.Sprintf("STU24%04d", i)] = true
	}
	store := &fakeIdentifiers{taken: taken}
	g := newTestGenerator(store)

	id := g.Generate(context.Background())
	assert.Regexp(t, `^STU[0-9A-F]{8}$`, id)
	assert.Len(t, store.probes, MaxIdentifierAttempts)
}

func TestGenerateFallsBackOnStoreError(t *testing.T) {
	g := newTestGenerator(&fakeIdentifiers{countErr: errors.New("connection refused")})
	assert.Regexp(t, `^STU[0-9A-F]{8}$`, g.Generate(context.Background()))

	g = newTestGenerator(&fakeIdentifiers{existsErr: errors.New("connection refused")})
	assert.Regexp(t, `^STU[0-9A-F]{8}$`, g.Generate(context.Background()))
}

func TestGenerateUsesConfiguredPrefix(t *testing.T) {
	store := &fakeIdentifiers{count: 41}
	g := NewIdentifierGenerator(store, "BSA", zerolog.New(io.Discard))
	g.now = func() time.Time { return time.Date(2031, 1, 2, 0, 0, 0, 0, time.UTC) }

	id := g.Generate(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, "BSA310042", id)
}
