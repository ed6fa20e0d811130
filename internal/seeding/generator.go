package seeding

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Attribute ranges for generated horses and races.
const (
	minAge           = 2
	ageSpread        = 6
	pedigreeChance   = 0.8
	pedigreeMin      = 45.0
	pedigreeSpread   = 60.0
	minWeightKg      = 50.0
	weightSpreadKg   = 12.0
	minDistanceM     = 1000
	distanceSteps    = 23
	distanceStepM    = 100
	raceSpacing      = 24 * time.Hour
	defaultFieldSize = 10
)

var (
	sexes      = []string{"male", "female", "gelding"}
	categories = []string{"maiden", "flat", "flat", "handicap", "handicap", "listed", "group"}
	conditions = []string{"firm", "good", "good", "soft", "heavy"}
)

// Generate builds a workload from cfg. Horse attributes and race cards are
// reproducible for a given seed; horse and race ids are random UUIDs.
func Generate(cfg *Config) Plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	horses := make([]Horse, cfg.Horses)
	for i := range horses {
		horses[i] = generateHorse(rng, i)
	}

	field := cfg.FieldSize
	if field <= 0 {
		field = defaultFieldSize
	}
	field = min(field, len(horses))

	start := time.Now().UTC().Add(-time.Duration(cfg.Races) * raceSpacing).Truncate(time.Second)
	races := make([]Race, 0, cfg.Races)
	if field == 0 {
		return Plan{Horses: horses, Races: races}
	}
	for i := 0; i < cfg.Races; i++ {
		races = append(races, generateRace(rng, horses, field, start.Add(time.Duration(i)*raceSpacing)))
	}
	return Plan{Horses: horses, Races: races}
}

func generateHorse(rng *rand.Rand, i int) Horse {
	h := Horse{
		ID:   uuid.NewString(),
		Name: "Runner " + strconv.Itoa(i+1),
		Age:  minAge + rng.IntN(ageSpread),
		Sex:  sexes[rng.IntN(len(sexes))],
	}
	if rng.Float64() < pedigreeChance {
		h.SireRating = pedigree(rng)
	}
	if rng.Float64() < pedigreeChance {
		h.DamRating = pedigree(rng)
	}
	return h
}

func pedigree(rng *rand.Rand) *float64 {
	v := math.Round((pedigreeMin+rng.Float64()*pedigreeSpread)*10) / 10
	return &v
}

// generateRace draws field distinct runners and assigns finishing positions
// in draw order.
func generateRace(rng *rand.Rand, horses []Horse, field int, runAt time.Time) Race {
	race := Race{ID: uuid.NewString(), Results: make([]Result, 0, field)}
	category := categories[rng.IntN(len(categories))]
	condition := conditions[rng.IntN(len(conditions))]
	distance := minDistanceM + rng.IntN(distanceSteps)*distanceStepM

	for pos, idx := range rng.Perm(len(horses))[:field] {
		race.Results = append(race.Results, Result{
			HorseID:        horses[idx].ID,
			RaceID:         race.ID,
			Position:       pos + 1,
			Weight:         math.Round((minWeightKg+rng.Float64()*weightSpreadKg)*2) / 2,
			Distance:       distance,
			RaceType:       category,
			TrackCondition: condition,
			FieldSize:      field,
			RunAt:          runAt.Format(time.RFC3339),
		})
	}
	return race
}
