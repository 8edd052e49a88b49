package types_test

import (
	"testing"

	"github.com/okian/pokerank/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func TestCategory(t *testing.T) {
	convey.Convey("Given the category enumeration", t, func() {
		convey.Convey("Then it has 18 valid members with colors", func() {
			all := types.All()
			convey.So(all, convey.ShouldHaveLength, 18)
			for _, c := range all {
				convey.So(c.Valid(), convey.ShouldBeTrue)
				convey.So(c.Color(), convey.ShouldStartWith, "bg-")
			}
			convey.So(types.Fire.Color(), convey.ShouldEqual, "bg-orange-500")
		})

		convey.Convey("When a category is unknown", func() {
			c := types.Category("Shadow")

			convey.Convey("Then it is invalid and gets the default color", func() {
				convey.So(c.Valid(), convey.ShouldBeFalse)
				convey.So(c.Color(), convey.ShouldEqual, types.DefaultColor)
			})
		})

		convey.Convey("When normalizing upstream names", func() {
			convey.So(types.Normalize("fire"), convey.ShouldEqual, types.Fire)
			convey.So(types.Normalize(" DRAGON "), convey.ShouldEqual, types.Dragon)
			convey.So(types.Normalize(""), convey.ShouldEqual, types.Category(""))
		})
	})
}

func TestSanitize(t *testing.T) {
	convey.Convey("Given raw category lists", t, func() {
		convey.Convey("When the list mixes valid, invalid and duplicate entries", func() {
			out := types.FromStrings([]string{"grass", "Shadow", "Poison", "GRASS"})

			convey.Convey("Then only the first occurrence of each valid category survives", func() {
				convey.So(out, convey.ShouldResemble, []types.Category{types.Grass, types.Poison})
			})
		})

		convey.Convey("When nothing valid remains", func() {
			convey.So(types.Sanitize(nil), convey.ShouldResemble, []types.Category{types.Normal})
			convey.So(types.FromStrings([]string{"???"}), convey.ShouldResemble, []types.Category{types.Normal})
		})
	})
}
