package messagebus

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"gridlock/entity"
)

func TestPublishEventDeliversToSubscriber(t *testing.T) {
	Convey("Given a bus with one subscriber on topic worker-0", t, func() {
		b := New()
		defer b.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		msgs, err := b.Subscribe(ctx, "worker-0")
		So(err, ShouldBeNil)

		Convey("PublishEvent delivers the body to the subscriber", func() {
			err := b.PublishEvent("worker-0", []byte("hello"))
			So(err, ShouldBeNil)

			select {
			case env := <-msgs:
				So(string(env.Body), ShouldEqual, "hello")
				So(env.Topic, ShouldEqual, "worker-0")
			case <-time.After(time.Second):
				t.Fatal("message not delivered")
			}
		})
	})
}

func TestScheduleMessageDeliversAtNextTick(t *testing.T) {
	Convey("Given a message scheduled for tick 3 with a 100ms granularity", t, func() {
		b := New()
		defer b.Close()
		pending := entity.NewPendingQueue()
		b.ScheduleMessage(pending, "worker-1", []byte("later"), 3, 100)

		Convey("it is not deliverable before tick 4's time", func() {
			err := b.DeliverScheduled(pending, 300)
			So(err, ShouldBeNil)
			So(pending.Len(), ShouldEqual, 1)
		})

		Convey("it is delivered once nowMS reaches (3+1)*100", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			msgs, err := b.Subscribe(ctx, "worker-1")
			So(err, ShouldBeNil)

			err = b.DeliverScheduled(pending, 400)
			So(err, ShouldBeNil)
			So(pending.Len(), ShouldEqual, 0)

			select {
			case env := <-msgs:
				So(string(env.Body), ShouldEqual, "later")
			case <-time.After(time.Second):
				t.Fatal("scheduled message not delivered")
			}
		})
	})
}
