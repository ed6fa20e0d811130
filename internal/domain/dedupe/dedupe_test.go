package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/furlong/internal/domain/dedupe"
	"github.com/okian/furlong/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, int64(0))

		Convey("When a result key is recorded", func() {
			key := model.RaceResult{HorseID: "h1", RaceID: "r1"}.Key()
			first := d.SeenAndRecord(ctx, key)
			second := d.SeenAndRecord(ctx, key)

			Convey("Then only the first submission is admitted", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, int64(1))
			})

			Convey("And the key is unrecorded", func() {
				d.Unrecord(ctx, key)

				Convey("Then it can be admitted again", func() {
					So(d.Size(), ShouldEqual, int64(0))
					So(d.SeenAndRecord(ctx, key), ShouldBeFalse)
				})
			})
		})

		Convey("When the same race is recorded for two horses", func() {
			a := d.SeenAndRecord(ctx, model.RaceResult{HorseID: "h1", RaceID: "r1"}.Key())
			b := d.SeenAndRecord(ctx, model.RaceResult{HorseID: "h2", RaceID: "r1"}.Key())

			Convey("Then both are admitted", func() {
				So(a, ShouldBeFalse)
				So(b, ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "nope")
			So(d.Size(), ShouldEqual, int64(0))
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("When a fourth key arrives", func() {
			d.SeenAndRecord(ctx, "k4")

			Convey("Then the oldest key is forgotten", func() {
				So(d.Size(), ShouldEqual, int64(3))
				So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})

		Convey("When a key is unrecorded before wrapping", func() {
			d.Unrecord(ctx, "k2")
			d.SeenAndRecord(ctx, "k4")
			d.SeenAndRecord(ctx, "k5")

			Convey("Then the size never exceeds the bound", func() {
				So(d.Size(), ShouldBeLessThanOrEqualTo, 3)
				So(d.SeenAndRecord(ctx, "k5"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
		for i := 0; i < 10000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, int64(10000))
			So(d.SeenAndRecord(ctx, "k0"), ShouldBeTrue)
			d.Unrecord(ctx, "k0")
			So(d.Size(), ShouldEqual, int64(9999))
		})
	})

	Convey("Given concurrent submissions of the same keys", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i)) {
						mu.Lock()
						admitted++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is admitted exactly once", func() {
			So(admitted, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, int64(100))
		})
	})
}
