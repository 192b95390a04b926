package seed

import (
	"math/rand"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
)

func newTestSeeder(t *testing.T) *Seeder {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSeeder(auction.NewStore(db), rand.New(rand.NewSource(1)))
}

func TestPickTagsDistinct(t *testing.T) {
	s := newTestSeeder(t)
	all := []int64{10, 20, 30, 40, 50}

	for i := 0; i < 100; i++ {
		picked := s.pickTags(all)
		if len(picked) != tagsPerAuction {
			t.Fatalf("picked %d tags, want %d", len(picked), tagsPerAuction)
		}
		seen := map[int64]bool{}
		for _, id := range picked {
			if seen[id] {
				t.Fatalf("duplicate tag id %d in %v", id, picked)
			}
			seen[id] = true
		}
	}
}

func TestRandomAuctionIsValid(t *testing.T) {
	s := newTestSeeder(t)
	author := uuid.New()

	for i := 0; i < 50; i++ {
		a := s.randomAuction(author, i)

		if a.Author != author {
			t.Fatal("author not applied")
		}
		if a.AuctionName == "" || a.Category == "" {
			t.Fatalf("incomplete auction: %+v", a)
		}
		if !a.StartDate.Before(a.EndDate) {
			t.Fatalf("start %v not before end %v", a.StartDate, a.EndDate)
		}
		if a.Status != auction.StatusLive {
			t.Fatalf("status = %q, want Live", a.Status)
		}
		if a.Quantity < 1 {
			t.Fatalf("quantity = %d", a.Quantity)
		}
		if !a.Currency.Valid() || !a.Condition.Valid() ||
			!a.AcceptedBidders.Valid() || !a.AcceptedLocations.Valid() {
			t.Fatalf("invalid choice fields: %+v", a)
		}
	}
}

func TestAuctionCountIsFixed(t *testing.T) {
	if AuctionCount != 201 {
		t.Errorf("AuctionCount = %d, want 201", AuctionCount)
	}
}
