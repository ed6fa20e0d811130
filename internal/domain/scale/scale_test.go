package scale_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/okian/furlong/internal/domain/scale"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	Convey("Given scale definitions", t, func() {
		Convey("When they are valid", func() {
			table, err := scale.NewTable(map[string]float64{"France": 0.9, "bha": 1})

			Convey("Then names are normalized and sorted", func() {
				So(err, ShouldBeNil)
				So(table.Len(), ShouldEqual, 2)
				So(table.Scales(), ShouldResemble, []scale.Scale{{Name: "bha", Factor: 1}, {Name: "france", Factor: 0.9}})
				f, err := table.Factor(" FRANCE ")
				So(err, ShouldBeNil)
				So(f, ShouldEqual, 0.9)
			})
		})

		Convey("When a factor is not positive", func() {
			_, err := scale.NewTable(map[string]float64{"bad": 0})
			So(errors.Is(err, scale.ErrInvalidScale), ShouldBeTrue)
			_, err = scale.NewTable(map[string]float64{"nan": math.NaN()})
			So(errors.Is(err, scale.ErrInvalidScale), ShouldBeTrue)
		})

		Convey("When names collide after normalization", func() {
			_, err := scale.NewTable(map[string]float64{"ERA": 1.05, "era": 1.05})
			So(errors.Is(err, scale.ErrInvalidScale), ShouldBeTrue)
		})

		Convey("When the registry is empty or a name is blank", func() {
			_, err := scale.NewTable(nil)
			So(err, ShouldNotBeNil)
			_, err = scale.NewTable(map[string]float64{"  ": 1})
			So(err, ShouldNotBeNil)
			So(func() { scale.MustTable(nil) }, ShouldPanic)
		})
	})
}

func TestConverter(t *testing.T) {
	Convey("Given the default registry", t, func() {
		conv := scale.NewConverter(scale.MustTable(scale.DefaultScales()))

		Convey("When converting 70 to france", func() {
			v, err := conv.Convert(70, "france")

			Convey("Then the value is exactly 63.0", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 63.0)
			})
		})

		Convey("When rounding lands on a half", func() {
			v, err := conv.Convert(72.5, "france") // 65.25
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 65.3)
		})

		Convey("When the scale is unknown", func() {
			_, err := conv.Convert(70, "mars")

			Convey("Then an UnknownScaleError names it", func() {
				var target *scale.UnknownScaleError
				So(errors.As(err, &target), ShouldBeTrue)
				So(target.Scale, ShouldEqual, "mars")
				So(errors.Is(err, scale.ErrUnknownScale), ShouldBeTrue)
			})

			_, err = conv.Invert(70, "mars")
			So(errors.Is(err, scale.ErrUnknownScale), ShouldBeTrue)
		})

		Convey("When converting to every scale", func() {
			all := conv.ConvertAll(80)

			Convey("Then each registered scale appears once in name order", func() {
				So(len(all), ShouldEqual, conv.Table().Len())
				So(all[0].Scale, ShouldEqual, "bha")
				for _, v := range all {
					if v.Scale == "ifha" {
						So(v.Value, ShouldEqual, 88.0)
					}
				}
			})
		})

		Convey("When a value is converted and inverted for every scale", func() {
			Convey("Then the original rating is recovered within rounding tolerance", func() {
				for _, s := range conv.Table().Scales() {
					for r := 20.0; r <= 150; r += 0.7 {
						v, err := conv.Convert(r, s.Name)
						So(err, ShouldBeNil)
						back, err := conv.Invert(v, s.Name)
						So(err, ShouldBeNil)
						So(math.Abs(back-r), ShouldBeLessThanOrEqualTo, 0.05/s.Factor+0.005+1e-6)
					}
				}
			})
		})

		Convey("When used concurrently", func() {
			var wg sync.WaitGroup
			results := make([]float64, 50)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = conv.Convert(70, "france")
				}(i)
			}
			wg.Wait()

			Convey("Then every call agrees", func() {
				for _, v := range results {
					So(v, ShouldEqual, 63.0)
				}
			})
		})
	})
}
