// Package generator produces synthetic customer batches for seeding and
// load exercises.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
)

var (
	firstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda",
		"William", "Barbara", "David", "Elizabeth", "Richard", "Susan", "Joseph", "Jessica",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson", "Anderson", "Thomas", "Taylor",
	}
	cities = []string{
		"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia",
		"San Antonio", "San Diego", "Dallas", "San Jose",
	}
	// states is index-paired with cities.
	states = []string{"NY", "CA", "IL", "TX", "AZ", "PA", "TX", "CA", "TX", "CA"}

	streets    = []string{"Main", "Oak", "Elm", "Pine"}
	tiers      = []string{"bronze", "silver", "gold", "platinum", "premium"}
	categories = []string{"retail", "enterprise", "government"}
	statuses   = []string{"active", "inactive", "pending"}
)

// uniqueSuffixThreshold is the batch size above which name collisions are
// likely enough that emails get a per-record suffix.
const uniqueSuffixThreshold = 50

// Generator produces customer records from a seeded source so batches are
// reproducible in tests.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New creates a generator seeded from the clock.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a generator with a fixed seed.
func NewSeeded(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Batch generates count customer records.
func (g *Generator) Batch(count int) []customer.Record {
	records := make([]customer.Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, g.one(i, count))
	}
	return records
}

func (g *Generator) one(i, count int) customer.Record {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]

	suffix := ""
	if count > uniqueSuffixThreshold {
		suffix = fmt.Sprintf("%d", i+1)
	}
	email := fmt.Sprintf("%s.%s%s@example.com", strings.ToLower(first), strings.ToLower(last), suffix)

	cityIdx := g.rng.Intn(len(cities))

	points := g.rng.Intn(1001)
	value := float64(int((100+g.rng.Float64()*9900)*100)) / 100
	lastPurchase := g.now().AddDate(0, 0, -(1 + g.rng.Intn(365))).Format(time.RFC3339)

	return customer.Record{
		ID:       uuid.NewString(),
		FullName: first + " " + last,
		Email:    email,
		Phone:    fmt.Sprintf("+1-555-%04d", 1000+g.rng.Intn(9000)),
		Address: customer.Address{
			Street:  fmt.Sprintf("%d %s St", 100+g.rng.Intn(9900), streets[g.rng.Intn(len(streets))]),
			City:    cities[cityIdx],
			State:   states[cityIdx],
			ZipCode: fmt.Sprintf("%05d", 10000+g.rng.Intn(90000)),
		},
		Preferences: customer.Preferences{
			Newsletter: g.rng.Intn(2) == 0,
			SMS:        g.rng.Intn(2) == 0,
		},
		Tier:             tiers[g.rng.Intn(len(tiers))],
		Category:         categories[g.rng.Intn(len(categories))],
		Status:           statuses[g.rng.Intn(len(statuses))],
		LoyaltyPoints:    &points,
		LifetimeValue:    &value,
		LastPurchaseDate: &lastPurchase,
	}
}
