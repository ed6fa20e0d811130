package rating_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/internal/domain/rating"
	"github.com/okian/furlong/internal/domain/scale"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func newEngine(opts ...rating.Option) *rating.Engine {
	opts = append([]rating.Option{rating.WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := rating.NewEngine(rating.DefaultParams(), scale.MustTable(scale.DefaultScales()), opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func win(horseID, raceID string, field int) model.RaceResult {
	return model.RaceResult{
		HorseID:        horseID,
		RaceID:         raceID,
		Position:       1,
		WeightKg:       57,
		DistanceM:      1600,
		Category:       model.CategoryFlat,
		TrackCondition: model.ConditionGood,
		FieldSize:      field,
	}
}

func TestComputeInitial(t *testing.T) {
	e := newEngine()

	Convey("Given a three year old with both parents rated", t, func() {
		h := model.Horse{ID: "h-1", Age: 3, Sex: model.SexMale, SireRating: ptr(90), DamRating: ptr(80)}
		r, c, err := e.ComputeInitial(h)

		Convey("Then the rating lies strictly between the parents and confidence stays low", func() {
			So(err, ShouldBeNil)
			So(r, ShouldBeGreaterThan, 80)
			So(r, ShouldBeLessThan, 90)
			So(r, ShouldAlmostEqual, 82.4, 1e-9)
			So(c, ShouldEqual, 30.0)
			So(c, ShouldBeLessThan, 50)
		})

		Convey("Then repeated calls agree exactly", func() {
			r2, c2, _ := e.ComputeInitial(h)
			So(r2, ShouldEqual, r)
			So(c2, ShouldEqual, c)
		})
	})

	Convey("Given horses with partial pedigree", t, func() {
		Convey("When only the sire is known", func() {
			r, c, err := e.ComputeInitial(model.Horse{ID: "h-2", Age: 4, Sex: model.SexFemale, SireRating: ptr(90)})
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 75.5, 1e-9)
			So(c, ShouldEqual, 20.0)
		})

		Convey("When no parent is known the baseline is used", func() {
			r, c, err := e.ComputeInitial(model.Horse{ID: "h-3", Age: 2, Sex: model.SexGelding})
			So(err, ShouldBeNil)
			So(r, ShouldEqual, 53.0)
			So(c, ShouldEqual, 10.0)
		})
	})

	Convey("Given invalid horses", t, func() {
		cases := []struct {
			name  string
			horse model.Horse
			field string
		}{
			{"zero age", model.Horse{ID: "x", Age: 0, Sex: model.SexMale}, "age"},
			{"unknown sex", model.Horse{ID: "x", Age: 3, Sex: "colt"}, "sex"},
			{"empty id", model.Horse{Age: 3, Sex: model.SexMale}, "id"},
			{"sire out of domain", model.Horse{ID: "x", Age: 3, Sex: model.SexMale, SireRating: ptr(500)}, "sire_rating"},
			{"dam out of domain", model.Horse{ID: "x", Age: 3, Sex: model.SexMale, DamRating: ptr(-3)}, "dam_rating"},
		}
		for _, tc := range cases {
			Convey("When "+tc.name, func() {
				_, err := e.NewRecord(tc.horse)

				Convey("Then an InvalidInputError names the field", func() {
					var target *rating.InvalidInputError
					So(errors.As(err, &target), ShouldBeTrue)
					So(target.Field, ShouldEqual, tc.field)
					So(errors.Is(err, rating.ErrInvalidInput), ShouldBeTrue)
				})
			})
		}
	})

	Convey("Given a new record", t, func() {
		rec, err := e.NewRecord(model.Horse{ID: "h-4", Age: 5, Sex: model.SexMale})
		So(err, ShouldBeNil)
		So(rec.HorseID, ShouldEqual, "h-4")
		So(rec.Rating, ShouldEqual, 65.0)
		So(rec.RacesConsidered, ShouldEqual, 0)
		So(rec.History, ShouldBeEmpty)

		Convey("Then the registration time comes from the engine clock", func() {
			So(rec.LastUpdated, ShouldEqual, fixedNow)
			So(rec.LastUpdated.IsZero(), ShouldBeFalse)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a record rated 70 with confidence 40", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h-1", Rating: 70, Confidence: 40}

		Convey("When it wins against a field of twelve", func() {
			out, applied, err := e.Apply(rec, win("h-1", "r-1", 12))

			Convey("Then rating and confidence both rise", func() {
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)
				So(out.Rating, ShouldBeGreaterThan, 70)
				So(out.Confidence, ShouldBeGreaterThan, 40)
				So(out.RacesConsidered, ShouldEqual, 1)
			})

			Convey("Then the previous state is appended to history", func() {
				So(len(out.History), ShouldEqual, 1)
				So(out.History[0], ShouldResemble, model.HistoryEntry{Rating: 70, Confidence: 40, RaceID: "r-1", RecordedAt: fixedNow})
				So(out.LastUpdated, ShouldEqual, fixedNow)
			})

			Convey("Then the input record is untouched", func() {
				So(rec.Rating, ShouldEqual, 70.0)
				So(rec.History, ShouldBeEmpty)
			})

			Convey("And the same result is applied again", func() {
				again, applied, err := e.Apply(out, win("h-1", "r-1", 12))

				Convey("Then nothing changes", func() {
					So(err, ShouldBeNil)
					So(applied, ShouldBeFalse)
					So(again, ShouldResemble, out)
				})
			})
		})

		Convey("When the result carries a race time", func() {
			res := win("h-1", "r-2", 8)
			res.RunAt = fixedNow.Add(-48 * time.Hour)
			out, _, err := e.Apply(rec, res)

			Convey("Then it is used instead of the clock", func() {
				So(err, ShouldBeNil)
				So(out.LastUpdated, ShouldEqual, res.RunAt)
				So(out.History[0].RecordedAt, ShouldEqual, res.RunAt)
			})
		})

		Convey("When the result belongs to another horse", func() {
			_, _, err := e.Apply(rec, win("h-2", "r-1", 12))

			Convey("Then UnknownHorseError is returned", func() {
				So(errors.Is(err, rating.ErrUnknownHorse), ShouldBeTrue)
			})
		})

		Convey("When strict duplicates are enabled", func() {
			strict := newEngine(rating.WithStrictDuplicates(true))
			out, _, err := strict.Apply(rec, win("h-1", "r-1", 12))
			So(err, ShouldBeNil)
			_, applied, err := strict.Apply(out, win("h-1", "r-1", 12))

			Convey("Then the repeat is rejected", func() {
				So(applied, ShouldBeFalse)
				var target *rating.DuplicateRaceError
				So(errors.As(err, &target), ShouldBeTrue)
				So(target.RaceID, ShouldEqual, "r-1")
			})
		})
	})

	Convey("Given malformed race results", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h", Rating: 70, Confidence: 40}
		cases := []struct {
			field string
			fn    func(*model.RaceResult)
		}{
			{"position", func(r *model.RaceResult) { r.Position = 0 }},
			{"field_size", func(r *model.RaceResult) { r.FieldSize = 0 }},
			{"weight", func(r *model.RaceResult) { r.WeightKg = -1 }},
			{"distance", func(r *model.RaceResult) { r.DistanceM = 0 }},
			{"race_type", func(r *model.RaceResult) { r.Category = "steeplechase" }},
			{"track_condition", func(r *model.RaceResult) { r.TrackCondition = "frozen" }},
			{"race_id", func(r *model.RaceResult) { r.RaceID = "" }},
		}
		for _, tc := range cases {
			res := win("h", "r", 10)
			tc.fn(&res)

			Convey("When "+tc.field+" is invalid", func() {
				_, applied, err := e.Apply(rec, res)
				var target *rating.InvalidInputError
				So(applied, ShouldBeFalse)
				So(errors.As(err, &target), ShouldBeTrue)
				So(target.Field, ShouldEqual, tc.field)
			})
		}

		Convey("When position exceeds the field", func() {
			res := win("h", "r", 5)
			res.Position = 6
			_, _, err := e.Apply(rec, res)
			So(errors.Is(err, rating.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a strong horse finishing last", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h", Rating: 100, Confidence: 40}
		res := win("h", "r", 10)
		res.Position = 10
		out, _, err := e.Apply(rec, res)

		Convey("Then its rating falls while confidence still rises", func() {
			So(err, ShouldBeNil)
			So(out.Rating, ShouldBeLessThan, 100)
			So(out.Confidence, ShouldBeGreaterThan, 40)
		})
	})

	Convey("Given a horse at the top of the domain", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h", Rating: 150, Confidence: 0}
		res := win("h", "r", 20)
		res.WeightKg = 70
		res.Category = model.CategoryGroup
		out, _, err := e.Apply(rec, res)

		Convey("Then the rating is clamped", func() {
			So(err, ShouldBeNil)
			So(out.Rating, ShouldEqual, 150.0)
		})
	})

	Convey("Given long random race sequences", t, func() {
		e := newEngine()
		rng := rand.New(rand.NewSource(7))
		categories := []model.RaceCategory{model.CategoryFlat, model.CategoryHandicap, model.CategoryMaiden, model.CategoryListed, model.CategoryGroup}
		conditions := []model.TrackCondition{model.ConditionFirm, model.ConditionGood, model.ConditionSoft, model.ConditionHeavy}

		Convey("Then rating stays in bounds and confidence never falls", func() {
			for h := 0; h < 20; h++ {
				rec, err := e.NewRecord(model.Horse{ID: fmt.Sprintf("h-%d", h), Age: 2 + h%5, Sex: model.SexGelding})
				So(err, ShouldBeNil)
				for i := 0; i < 200; i++ {
					field := 1 + rng.Intn(20)
					res := model.RaceResult{
						HorseID:        rec.HorseID,
						RaceID:         fmt.Sprintf("r-%d", i),
						Position:       1 + rng.Intn(field),
						WeightKg:       48 + rng.Float64()*20,
						DistanceM:      1000 + rng.Intn(3000),
						Category:       categories[rng.Intn(len(categories))],
						TrackCondition: conditions[rng.Intn(len(conditions))],
						FieldSize:      field,
					}
					prev := rec.Confidence
					rec, _, err = e.Apply(rec, res)
					if err != nil || rec.Rating < 20 || rec.Rating > 150 || rec.Confidence < prev || rec.Confidence > 100 {
						So(err, ShouldBeNil)
						So(rec.Rating, ShouldBeBetweenOrEqual, 20, 150)
						So(rec.Confidence, ShouldBeGreaterThanOrEqualTo, prev)
					}
				}
				So(rec.RacesConsidered, ShouldEqual, 200)
				So(len(rec.History), ShouldEqual, 200)
			}
		})
	})
}

func TestApplyCarriedWeight(t *testing.T) {
	Convey("Given a record rated 70 with confidence 40 winning against twelve", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h-1", Rating: 70, Confidence: 40}

		Convey("Then the rating rises for every accepted weight", func() {
			for _, kg := range []float64{40, 45, 50, 55, 57, 60, 65, 70, 75} {
				res := win("h-1", "r-1", 12)
				res.WeightKg = kg
				out, applied, err := e.Apply(rec, res)
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)
				So(out.Rating, ShouldBeGreaterThan, 70)
			}
		})

		Convey("Then a heavier weight earns more than a lighter one", func() {
			light, heavy := win("h-1", "r-1", 12), win("h-1", "r-1", 12)
			light.WeightKg, heavy.WeightKg = 50, 62
			lo, _, _ := e.Apply(rec, light)
			hi, _, _ := e.Apply(rec, heavy)
			So(hi.Rating, ShouldBeGreaterThan, lo.Rating)
		})

		Convey("Then weights outside the accepted range are rejected", func() {
			for _, kg := range []float64{1, 20, 39.5, 75.5, 200} {
				res := win("h-1", "r-1", 12)
				res.WeightKg = kg
				out, applied, err := e.Apply(rec, res)

				var target *rating.InvalidInputError
				So(errors.As(err, &target), ShouldBeTrue)
				So(target.Field, ShouldEqual, "weight")
				So(applied, ShouldBeFalse)
				So(out, ShouldResemble, rec)
			}
		})
	})

	Convey("Given a horse near the top of the domain", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h-2", Rating: 149, Confidence: 60}

		Convey("When it wins under the lightest weight", func() {
			res := win("h-2", "r-1", 12)
			res.WeightKg = 40
			out, _, err := e.Apply(rec, res)

			Convey("Then the weight does not turn the win into a loss", func() {
				So(err, ShouldBeNil)
				So(out.Rating, ShouldBeGreaterThan, 149)
			})
		})
	})

	Convey("Given a record that finishes last under top weight", t, func() {
		e := newEngine()
		rec := model.RatingRecord{HorseID: "h-3", Rating: 70, Confidence: 40}
		res := win("h-3", "r-1", 12)
		res.Position = 12
		res.WeightKg = 75
		out, _, err := e.Apply(rec, res)

		Convey("Then the rating still falls", func() {
			So(err, ShouldBeNil)
			So(out.Rating, ShouldBeLessThan, 70)
		})
	})
}

func TestParams(t *testing.T) {
	Convey("Given parameter sets", t, func() {
		So(rating.DefaultParams().Validate(), ShouldBeNil)

		p := rating.DefaultParams()
		p.MinRating, p.MaxRating = 100, 50
		So(errors.Is(p.Validate(), rating.ErrInvalidParams), ShouldBeTrue)

		p = rating.DefaultParams()
		p.MinWeightKg, p.MaxWeightKg = 60, 75
		So(errors.Is(p.Validate(), rating.ErrInvalidParams), ShouldBeTrue)

		p = rating.DefaultParams()
		p.Baselines = nil
		So(errors.Is(p.Validate(), rating.ErrInvalidParams), ShouldBeTrue)

		p = rating.DefaultParams()
		p.CategoryFactors[model.CategoryGroup] = 0
		_, err := rating.NewEngine(p, nil)
		So(errors.Is(err, rating.ErrInvalidParams), ShouldBeTrue)
	})
}

func TestEngineConversions(t *testing.T) {
	Convey("Given the default engine", t, func() {
		e := newEngine()

		v, err := e.Convert(70, "france")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 63.0)

		_, err = e.Convert(70, "nowhere")
		So(errors.Is(err, scale.ErrUnknownScale), ShouldBeTrue)

		back, err := e.Invert(63, "france")
		So(err, ShouldBeNil)
		So(back, ShouldEqual, 70.0)

		So(len(e.ConvertAll(70)), ShouldEqual, len(e.Scales()))
		So(e.Summarize(nil, 5).Count, ShouldEqual, 0)
	})
}
