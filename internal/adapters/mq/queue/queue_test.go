package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type testMessage struct{ id string }

func (testMessage) Kind() string { return "test" }

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a mailbox with room for two messages", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("When it is new", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When enqueueing and dequeueing", func() {
			So(q.Enqueue(ctx, testMessage{"m1"}), ShouldBeNil)
			So(q.Enqueue(ctx, testMessage{"m2"}), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 2)

			out := q.Dequeue(ctx)

			Convey("Then messages come out in order", func() {
				So((<-out).(testMessage).id, ShouldEqual, "m1")
				So((<-out).(testMessage).id, ShouldEqual, "m2")
			})
		})

		Convey("When the mailbox is full", func() {
			So(q.Enqueue(ctx, testMessage{"m1"}), ShouldBeNil)
			So(q.Enqueue(ctx, testMessage{"m2"}), ShouldBeNil)

			Convey("Then Enqueue pushes back immediately", func() {
				So(q.Enqueue(ctx, testMessage{"m3"}), ShouldEqual, ErrFull)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then Put waits for room", func() {
				accepted := make(chan error, 1)
				go func() { accepted <- q.Put(ctx, testMessage{"m3"}) }()

				select {
				case <-accepted:
					t.Fatal("put should block while the mailbox is full")
				case <-time.After(20 * time.Millisecond):
				}

				out := q.Dequeue(ctx)
				<-out
				So(<-accepted, ShouldBeNil)
			})

			Convey("Then Put gives up with its context", func() {
				short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
				defer cancel()
				err := q.Put(short, testMessage{"m3"})
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})

			Convey("Then Put is released by Close", func() {
				accepted := make(chan error, 1)
				go func() { accepted <- q.Put(ctx, testMessage{"m3"}) }()
				time.Sleep(10 * time.Millisecond)
				So(q.Close(), ShouldBeNil)
				So(<-accepted, ShouldEqual, ErrClosed)
			})
		})

		Convey("When the mailbox is closed", func() {
			out := q.Dequeue(ctx)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then nothing is accepted and consumers are released", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, testMessage{"late"}), ShouldEqual, ErrClosed)
				So(q.Put(ctx, testMessage{"late"}), ShouldEqual, ErrClosed)
				_, ok := <-out
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestInMemoryQueueConcurrentProducers(t *testing.T) {
	Convey("Given many producers using Put", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(4))
		out := q.Dequeue(ctx)

		const producers, each = 8, 25
		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < each; i++ {
					_ = q.Put(ctx, testMessage{fmt.Sprintf("%d-%d", p, i)})
				}
			}(p)
		}

		seen := map[string]bool{}
		for len(seen) < producers*each {
			m := <-out
			seen[m.(testMessage).id] = true
		}
		wg.Wait()

		Convey("Then every message is delivered exactly once", func() {
			So(len(seen), ShouldEqual, producers*each)
			So(q.Len(ctx), ShouldEqual, 0)
		})
	})
}
