package gormstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"langvote/internal/db"
	"langvote/internal/models"
	"langvote/internal/store"
)

// Runs against a real Postgres when DATABASE_URL is set. Only rows it creates are touched.
func TestConcurrentIncrementsOnPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" || testing.Short() {
		t.Skip("DATABASE_URL not set")
	}

	conn, err := db.Open(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	s := New(conn)
	ctx := context.Background()

	name := fmt.Sprintf("it-%d", time.Now().UnixNano())
	options := []models.Option{{Name: name, NameKey: name}}
	require.NoError(t, s.Atomic(ctx, func(tx store.Tx) error {
		return tx.CreateOptions(ctx, options)
	}))
	id := options[0].ID
	t.Cleanup(func() {
		conn.Where("option_id = ?", id).Delete(&models.VoteEvent{})
		conn.Delete(&models.Option{}, id)
	})

	const n = 50
	counts := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Atomic(ctx, func(tx store.Tx) error {
				option, err := tx.IncrementVotes(ctx, id)
				if err != nil {
					return err
				}
				now, err := tx.Now(ctx)
				if err != nil {
					return err
				}
				counts[i] = option.Votes
				return tx.AppendEvents(ctx, []models.VoteEvent{{
					OptionID:   id,
					Language:   name,
					VotesAfter: option.Votes,
					EventType:  models.EventTypeVote,
					CreatedAt:  now,
				}})
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sort.Slice(counts, func(a, b int) bool { return counts[a] < counts[b] })
	for i, c := range counts {
		assert.EqualValues(t, i+1, c)
	}

	var events []models.VoteEvent
	require.NoError(t, conn.Where("option_id = ?", id).Order("created_at ASC, id ASC").Find(&events).Error)
	require.Len(t, events, n)
	for i, e := range events {
		assert.EqualValues(t, i+1, e.VotesAfter, "votes_after must follow timestamp order")
	}
}
