// Package seed populates a development database with the fixed category and
// tag vocabularies and a deterministic number of demo auctions.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

// AuctionCount is how many demo auctions one run creates.
const AuctionCount = 201

const tagsPerAuction = 3

var demoNames = []string{
	"Office chairs", "Laptop fleet", "Warehouse shelving", "Delivery van",
	"Catering service", "Printing run", "Solar panels", "Landscaping",
	"Industrial freezer", "Security cameras", "Conference AV setup",
	"Fleet tires", "Server rack", "Espresso machines", "Uniform order",
}

// Seeder writes demo data through the auction store.
type Seeder struct {
	store *auction.Store
	log   *logger.Logger
	rng   *rand.Rand
}

// NewSeeder creates a seeder. A fixed source keeps runs reproducible when the
// caller seeds the generator.
func NewSeeder(store *auction.Store, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{store: store, log: logger.With("seed"), rng: rng}
}

// Run upserts the vocabularies and creates AuctionCount auctions authored by
// the given user.
func (s *Seeder) Run(ctx context.Context, author uuid.UUID) error {
	if err := s.seedVocabularies(ctx); err != nil {
		return fmt.Errorf("seed vocabularies: %w", err)
	}

	tagIDs, err := s.allTagIDs(ctx)
	if err != nil {
		return err
	}
	if len(tagIDs) < tagsPerAuction {
		return fmt.Errorf("tag vocabulary too small: %d entries", len(tagIDs))
	}

	for i := 0; i < AuctionCount; i++ {
		a := s.randomAuction(author, i)
		categoryID, err := s.store.ResolveCategory(ctx, a.Category)
		if err != nil {
			return err
		}
		a.CategoryID = categoryID

		if err := s.store.CreateAuction(ctx, a, s.pickTags(tagIDs)); err != nil {
			return fmt.Errorf("create auction %d: %w", i+1, err)
		}
	}

	s.log.Info("seeded auctions", "count", AuctionCount, "author", author)
	return nil
}

func (s *Seeder) seedVocabularies(ctx context.Context) error {
	db := s.store.DB()
	for _, name := range auction.CategoryNames {
		_, err := db.ExecContext(ctx,
			`INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
		if err != nil {
			return err
		}
	}
	for _, name := range auction.TagNames {
		_, err := db.ExecContext(ctx,
			`INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) allTagIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.store.DB().QueryContext(ctx, `SELECT id FROM tags ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pickTags selects tagsPerAuction distinct tag ids.
func (s *Seeder) pickTags(all []int64) []int64 {
	picked := make([]int64, 0, tagsPerAuction)
	seen := map[int]bool{}
	for len(picked) < tagsPerAuction {
		i := s.rng.Intn(len(all))
		if seen[i] {
			continue
		}
		seen[i] = true
		picked = append(picked, all[i])
	}
	return picked
}

func (s *Seeder) randomAuction(author uuid.UUID, i int) *auction.Auction {
	now := time.Now()
	start := now.Add(-time.Duration(s.rng.Intn(48)) * time.Hour)
	end := now.Add(time.Duration(1+s.rng.Intn(14*24)) * time.Hour)

	conditions := []auction.Condition{
		auction.ConditionNew, auction.ConditionOpenBox, auction.ConditionExcellent,
		auction.ConditionVeryGood, auction.ConditionGood, auction.ConditionUsed,
		auction.ConditionForParts,
	}
	bidders := []auction.AcceptedBidders{
		auction.BiddersCompany, auction.BiddersIndividual, auction.BiddersBoth,
	}
	locations := []auction.AcceptedLocations{
		auction.LocationsMyLocation, auction.LocationsInternational,
	}
	currencies := []auction.Currency{
		auction.CurrencyGEL, auction.CurrencyUSD, auction.CurrencyEUR,
	}

	name := demoNames[s.rng.Intn(len(demoNames))]
	return &auction.Auction{
		Author:            author,
		AuctionName:       fmt.Sprintf("%s #%d", name, i+1),
		Description:       fmt.Sprintf("Demo auction for %s.", name),
		Category:          auction.CategoryNames[s.rng.Intn(len(auction.CategoryNames))],
		StartDate:         start,
		EndDate:           end,
		MaxPrice:          fmt.Sprintf("%d.00", 50+s.rng.Intn(9950)),
		Quantity:          1 + s.rng.Intn(20),
		AcceptedBidders:   bidders[s.rng.Intn(len(bidders))],
		AcceptedLocations: locations[s.rng.Intn(len(locations))],
		Status:            auction.StatusLive,
		Currency:          currencies[s.rng.Intn(len(currencies))],
		Condition:         conditions[s.rng.Intn(len(conditions))],
	}
}
