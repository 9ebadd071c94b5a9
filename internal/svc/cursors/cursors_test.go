package cursors

import (
	"sync"
	"testing"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/testutil"
)

func TestUpsertOverwrites(t *testing.T) {
	c := New(Options{})

	c.Upsert(1, 5, 10, 20)
	c.Upsert(1, 5, 15, 25)

	all := c.Board(1)
	testutil.Assert(t, 1, len(all), "one record per pair")
	testutil.Assert(t, 15.0, all[0].X, "x")
	testutil.Assert(t, 25.0, all[0].Y, "y")

	p, ok := c.Get(1, 5)
	testutil.Assert(t, true, ok, "found")
	testutil.Assert(t, all[0], p, "same record")
}

func TestGetMissing(t *testing.T) {
	c := New(Options{})

	_, ok := c.Get(3, 0)
	testutil.Assert(t, false, ok, "no record on empty board")

	c.Upsert(3, 1, 0, 0)

	_, ok = c.Get(3, 2)
	testutil.Assert(t, false, ok, "no record for other user")
}

func TestSeed(t *testing.T) {
	c := New(Options{})

	testutil.Assert(t, true, c.Seed(1, 5, 0, 0), "seed empty")

	c.Upsert(1, 5, 40, 50)
	testutil.Assert(t, false, c.Seed(1, 5, 0, 0), "seed never overwrites")

	p, _ := c.Get(1, 5)
	testutil.Assert(t, 40.0, p.X, "kept x")
}

func TestBoardOrder(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(Options{Now: func() time.Time { return now }})

	c.Upsert(1, 1, 0, 0)
	now = now.Add(time.Second)
	c.Upsert(1, 2, 0, 0)
	now = now.Add(time.Second)
	c.Upsert(1, 3, 0, 0)
	now = now.Add(time.Second)
	c.Upsert(1, 1, 9, 9)

	got := c.Board(1)
	ids := make([]model.UserID, len(got))
	for i, p := range got {
		ids[i] = p.UserID
	}

	testutil.AssertSlice(t, []model.UserID{1, 3, 2}, ids, "most recent first")
	testutil.Assert(t, 0, len(c.Board(2)), "other board empty")
}

func TestConcurrentUpsert(t *testing.T) {
	c := New(Options{})

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			c.Upsert(1, 5, float64(i), float64(i))
			c.Upsert(1, model.UserID(100+i), 1, 1)
		}(i)
	}

	wg.Wait()

	testutil.Assert(t, 51, len(c.Board(1)), "one record per user")
}
