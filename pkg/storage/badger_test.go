package storage

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestBadgerStore(t *testing.T) {
	convey.Convey("Given an in-memory Badger store", t, func() {
		store, err := NewBadgerStore("", 0)
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()
		ctx := context.Background()

		convey.Convey("When a snapshot is stored", func() {
			want := snapshot(t, "plant-a", time.Now().Truncate(time.Millisecond))
			convey.So(store.Put(ctx, want), convey.ShouldBeNil)

			convey.Convey("Then it round-trips through msgpack and zstd", func() {
				got, found, err := store.GetLatest(ctx, "plant-a")
				convey.So(err, convey.ShouldBeNil)
				convey.So(found, convey.ShouldBeTrue)
				assertSameSnapshot(t, got, want)
			})

			convey.Convey("Then a second snapshot replaces it", func() {
				next := snapshot(t, "plant-a", time.Now())
				convey.So(store.Put(ctx, next), convey.ShouldBeNil)

				got, _, err := store.GetLatest(ctx, "plant-a")
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.RunID, convey.ShouldEqual, next.RunID)
			})

			convey.Convey("Then other sites stay absent", func() {
				_, found, err := store.GetLatest(ctx, "plant-b")
				convey.So(err, convey.ShouldBeNil)
				convey.So(found, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the site name is invalid", func() {
			convey.So(store.Put(ctx, Snapshot{Site: "plant a"}), convey.ShouldNotBeNil)
			_, _, err := store.GetLatest(ctx, "")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a Badger store with a TTL", t, func() {
		store, err := NewBadgerStore("", time.Second)
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()
		ctx := context.Background()

		convey.So(store.Put(ctx, Snapshot{Site: "plant-a", RunID: "r1"}), convey.ShouldBeNil)

		convey.Convey("Then the snapshot disappears once the TTL passes", func() {
			_, found, _ := store.GetLatest(ctx, "plant-a")
			convey.So(found, convey.ShouldBeTrue)

			time.Sleep(2100 * time.Millisecond)

			_, found, err := store.GetLatest(ctx, "plant-a")
			convey.So(err, convey.ShouldBeNil)
			convey.So(found, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given a persistent Badger store", t, func() {
		dir := t.TempDir()
		store, err := NewBadgerStore(dir, 0)
		convey.So(err, convey.ShouldBeNil)
		convey.So(store.Put(context.Background(), Snapshot{Site: "plant-a", RunID: "kept"}), convey.ShouldBeNil)
		convey.So(store.Close(), convey.ShouldBeNil)

		convey.Convey("Then reopening the directory returns the snapshot", func() {
			reopened, err := NewBadgerStore(dir, 0)
			convey.So(err, convey.ShouldBeNil)
			defer reopened.Close()

			got, found, err := reopened.GetLatest(context.Background(), "plant-a")
			convey.So(err, convey.ShouldBeNil)
			convey.So(found, convey.ShouldBeTrue)
			convey.So(got.RunID, convey.ShouldEqual, "kept")
		})
	})

	convey.Convey("A negative TTL is rejected", t, func() {
		_, err := NewBadgerStore("", -time.Second)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
