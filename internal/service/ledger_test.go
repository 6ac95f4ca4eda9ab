package service

import (
	"alcyxob/equipment-app/internal/domain"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStampEntry(t *testing.T) {
	today := day(2026, 3, 14)
	earlier := day(2025, 9, 1)
	supplied := day(2026, 1, 1)

	tests := []struct {
		name           string
		old            *domain.ProgressEntry
		next           domain.ProgressEntry
		wantCompletion *time.Time
		wantCompetency *time.Time
	}{
		{
			name: "partial progress stamps nothing",
			next: domain.ProgressEntry{Progress: 50},
		},
		{
			name:           "first completion is stamped today",
			old:            &domain.ProgressEntry{Progress: 50},
			next:           domain.ProgressEntry{Progress: 100},
			wantCompletion: &today,
		},
		{
			name:           "completion with no prior entry is stamped",
			next:           domain.ProgressEntry{Progress: 100},
			wantCompletion: &today,
		},
		{
			name:           "repeat completion keeps the original stamp",
			old:            &domain.ProgressEntry{Progress: 100, CompletionDate: &earlier},
			next:           domain.ProgressEntry{Progress: 100},
			wantCompletion: &earlier,
		},
		{
			name:           "first competency is stamped today",
			old:            &domain.ProgressEntry{Progress: 40},
			next:           domain.ProgressEntry{Progress: 40, Competent: true},
			wantCompetency: &today,
		},
		{
			name:           "dates survive a lower progress value",
			old:            &domain.ProgressEntry{Progress: 100, Competent: true, CompletionDate: &earlier, CompetencyDate: &earlier},
			next:           domain.ProgressEntry{Progress: 30},
			wantCompletion: &earlier,
			wantCompetency: &earlier,
		},
		{
			name:           "caller supplied date is kept when nothing is on record",
			next:           domain.ProgressEntry{Progress: 100, CompletionDate: &supplied},
			wantCompletion: &supplied,
		},
		{
			name:           "recorded date wins over a caller supplied one",
			old:            &domain.ProgressEntry{Progress: 100, CompletionDate: &earlier},
			next:           domain.ProgressEntry{Progress: 100, CompletionDate: &supplied},
			wantCompletion: &earlier,
		},
		{
			name:           "competent again without a stored date stays unstamped",
			old:            &domain.ProgressEntry{Competent: true},
			next:           domain.ProgressEntry{Competent: true},
			wantCompetency: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StampEntry(tt.old, tt.next, today)
			assert.Equal(t, tt.wantCompletion, got.CompletionDate)
			assert.Equal(t, tt.wantCompetency, got.CompetencyDate)
			assert.Equal(t, tt.next.Progress, got.Progress)
			assert.Equal(t, tt.next.Competent, got.Competent)
		})
	}
}

func TestProgressLedger_MonotonicStamping(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, nil)

	_, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 50}})
	require.NoError(t, err)

	progress, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 100}})
	require.NoError(t, err)
	require.NotNil(t, progress["Lathe"].CompletionDate)
	stamped := *progress["Lathe"].CompletionDate
	assert.Equal(t, day(2026, 3, 14), stamped)

	f.clock.Set(time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	progress, err = f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 100}})
	require.NoError(t, err)
	assert.Equal(t, stamped, *progress["Lathe"].CompletionDate)

	progress, err = f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 60, Competent: true}})
	require.NoError(t, err)
	assert.Equal(t, stamped, *progress["Lathe"].CompletionDate)
	assert.Equal(t, day(2026, 4, 2), *progress["Lathe"].CompetencyDate)
}

func TestProgressLedger_BatchKeysAreIndependent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	earlier := day(2025, 5, 5)
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, map[string]domain.ProgressEntry{
		"Lathe":     {Progress: 100, CompletionDate: &earlier},
		"Untouched": {Progress: 20},
	})

	progress, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{
		"Lathe":   {Progress: 100, Competent: true},
		"Bandsaw": {Progress: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, earlier, *progress["Lathe"].CompletionDate)
	assert.Equal(t, day(2026, 3, 14), *progress["Lathe"].CompetencyDate)
	assert.Equal(t, day(2026, 3, 14), *progress["Bandsaw"].CompletionDate)
	assert.Nil(t, progress["Bandsaw"].CompetencyDate)
	assert.Equal(t, 20, progress["Untouched"].Progress)
}

func TestProgressLedger_KeysCollidingAfterTrimAreRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, map[string]domain.ProgressEntry{"Lathe": {Progress: 20}})

	_, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{
		"Lathe":  {Progress: 100},
		" Lathe": {Progress: 10},
	})
	require.ErrorIs(t, err, ErrInvalidField)
	assert.Contains(t, err.Error(), "duplicated after trimming")

	progress, err := f.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressEntry{Progress: 20}, progress["Lathe"])
}

func TestProgressLedger_LegacyStoredValueCountsAsOldEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, map[string]domain.ProgressEntry{
		"Lathe": domain.LegacyProgress(100),
	})

	progress, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 100}})
	require.NoError(t, err)
	// Already complete before this update, so there is no first-completion event.
	assert.Nil(t, progress["Lathe"].CompletionDate)
}

func TestProgressLedger_ResetClearsDates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	earlier := day(2025, 5, 5)
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, map[string]domain.ProgressEntry{
		"Lathe": {Progress: 100, Competent: true, CompletionDate: &earlier, CompetencyDate: &earlier},
		"Drill": {Progress: 70},
	})

	progress, err := f.ledger.Reset(ctx, id, []string{"Lathe", "Welding"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressEntry{}, progress["Lathe"])
	assert.Equal(t, domain.ProgressEntry{}, progress["Welding"])
	assert.Equal(t, 70, progress["Drill"].Progress)

	progress, err = f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 100}})
	require.NoError(t, err)
	assert.Equal(t, day(2026, 3, 14), *progress["Lathe"].CompletionDate)
}

func TestProgressLedger_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, map[string]domain.ProgressEntry{"Lathe": {Progress: 10}})

	_, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 101}})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{" ": {Progress: 5}})
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = f.ledger.ApplyUpdate(ctx, id, nil)
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = f.ledger.Reset(ctx, id, nil)
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = f.ledger.ApplyUpdate(ctx, primitive.NewObjectID(), map[string]domain.ProgressEntry{"Lathe": {Progress: 5}})
	assert.ErrorIs(t, err, ErrPersonNotFound)

	// A rejected batch writes nothing.
	_, err = f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{"Lathe": {Progress: 90}, "Drill": {Progress: -1}})
	require.Error(t, err)
	progress, err := f.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, progress["Lathe"].Progress)
	assert.NotContains(t, progress, "Drill")
}

func TestProgressLedger_ConcurrentUpdatesDoNotLoseLessons(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.addPerson(t, "Jane Doe", domain.RoleStaff, nil)

	lessons := []string{"Lathe", "Drill", "Bandsaw", "Router", "Welding", "Sander", "Mill", "Jointer"}
	var wg sync.WaitGroup
	errs := make(chan error, len(lessons))
	for _, lesson := range lessons {
		wg.Add(1)
		go func(lesson string) {
			defer wg.Done()
			_, err := f.ledger.ApplyUpdate(ctx, id, map[string]domain.ProgressEntry{lesson: {Progress: 100}})
			errs <- err
		}(lesson)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	progress, err := f.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, progress, len(lessons))
	for _, lesson := range lessons {
		assert.NotNil(t, progress[lesson].CompletionDate, lesson)
	}
}
