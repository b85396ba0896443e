package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTestCaseIfNewDedupes(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	storyID, err := store.UpsertStory(ctx, "KCA-1", "T", "D", "To Do")
	require.NoError(t, err)

	id1, wasNew, err := store.InsertTestCaseIfNew(ctx, storyID, "X")
	require.NoError(t, err)
	assert.True(t, wasNew)

	id2, wasNew, err := store.InsertTestCaseIfNew(ctx, storyID, "X")
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, id1, id2)

	assert.Equal(t, 1, countRows(t, store,
		`SELECT COUNT(*) FROM test_cases WHERE user_story_id = ? AND content = ?`, storyID, "X"))
}

func TestInsertTestCaseIfNewDistinctContent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	storyID, err := store.UpsertStory(ctx, "KCA-1", "T", "D", "To Do")
	require.NoError(t, err)

	idX, newX, err := store.InsertTestCaseIfNew(ctx, storyID, "X")
	require.NoError(t, err)
	idY, newY, err := store.InsertTestCaseIfNew(ctx, storyID, "Y")
	require.NoError(t, err)

	assert.True(t, newX)
	assert.True(t, newY)
	assert.NotEqual(t, idX, idY)
}

func TestInsertTestCaseIfNewScopedToStory(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a, err := store.UpsertStory(ctx, "KCA-1", "A", "", "To Do")
	require.NoError(t, err)
	b, err := store.UpsertStory(ctx, "KCA-2", "B", "", "To Do")
	require.NoError(t, err)

	idA, _, err := store.InsertTestCaseIfNew(ctx, a, "same text")
	require.NoError(t, err)
	idB, wasNew, err := store.InsertTestCaseIfNew(ctx, b, "same text")
	require.NoError(t, err)

	assert.True(t, wasNew, "identical content for another story is new")
	assert.NotEqual(t, idA, idB)
}

func TestInsertTestCaseIfNewByteExact(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	storyID, err := store.UpsertStory(ctx, "KCA-1", "T", "", "To Do")
	require.NoError(t, err)

	_, _, err = store.InsertTestCaseIfNew(ctx, storyID, "Scenario: A")
	require.NoError(t, err)

	for _, variant := range []string{"scenario: a", "Scenario: A ", "Scenario: A\n"} {
		_, wasNew, err := store.InsertTestCaseIfNew(ctx, storyID, variant)
		require.NoError(t, err)
		assert.True(t, wasNew, "%q differs byte-wise and must be stored", variant)
	}
}

// TestInsertTestCaseIfNewConcurrent races several callers on the same pair;
// exactly one of them may win
func TestInsertTestCaseIfNewConcurrent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	storyID, err := store.UpsertStory(ctx, "KCA-1", "T", "", "To Do")
	require.NoError(t, err)

	const workers = 10
	type result struct {
		id     int64
		wasNew bool
		err    error
	}
	results := make([]result, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			id, wasNew, err := store.InsertTestCaseIfNew(ctx, storyID, "racy content")
			results[i] = result{id, wasNew, err}
		}(i)
	}
	close(start)
	wg.Wait()

	newCount := 0
	for _, r := range results {
		require.NoError(t, r.err)
		assert.Equal(t, results[0].id, r.id)
		if r.wasNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM test_cases`))
}

func TestListAndLatestTestCases(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	storyID, err := store.UpsertStory(ctx, "KCA-1", "T", "", "To Do")
	require.NoError(t, err)

	latest, err := store.LatestTestCase(ctx, storyID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	docs, err := store.ListTestCases(ctx, storyID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	first, _, err := store.InsertTestCaseIfNew(ctx, storyID, "first")
	require.NoError(t, err)
	second, _, err := store.InsertTestCaseIfNew(ctx, storyID, "second")
	require.NoError(t, err)

	docs, err = store.ListTestCases(ctx, storyID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second, docs[0].ID)
	assert.Equal(t, first, docs[1].ID)
	assert.Equal(t, storyID, docs[0].StoryID)
	assert.False(t, docs[0].GeneratedAt.IsZero())

	latest, err = store.LatestTestCase(ctx, storyID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, "second", latest.Content)
}
