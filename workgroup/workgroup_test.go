package workgroup

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"gridlock/entity"
)

type stubEntity struct {
	id    uint64
	start int64
}

func (e *stubEntity) ID() uint64         { return e.id }
func (e *stubEntity) StartTimeMS() int64 { return e.start }
func (e *stubEntity) IsFake() bool       { return false }
func (e *stubEntity) Tick(nowMS int64) entity.UpdateStatus {
	return entity.ContinueStatus()
}

func TestStageEntitiesHonorsStartTime(t *testing.T) {
	Convey("Given a pending queue with entities at varying start times", t, func() {
		pq := entity.NewPendingQueue()
		pq.Push(&entity.PendingEntity{Entity: &stubEntity{id: 1, start: 0}, StartTime: 0})
		pq.Push(&entity.PendingEntity{Entity: &stubEntity{id: 2, start: 500}, StartTime: 500})
		pq.Push(&entity.PendingEntity{Entity: &stubEntity{id: 3, start: 5000}, StartTime: 5000})

		g := New("test", 2, 1, RoundRobin, pq, zap.NewNop())

		Convey("staging at tick 0 only admits the entity starting at 0", func() {
			g.stageEntities(0)
			total := g.Workers[0].Len() + g.Workers[1].Len()
			So(total, ShouldEqual, 1)
		})

		Convey("staging at 1000ms admits entities 1 and 2", func() {
			g.stageEntities(1000)
			total := g.Workers[0].Len() + g.Workers[1].Len()
			So(total, ShouldEqual, 2)
		})
	})
}

func TestRoundRobinAssignment(t *testing.T) {
	Convey("Given a 2-worker group with round-robin assignment", t, func() {
		pq := entity.NewPendingQueue()
		g := New("test", 2, 1, RoundRobin, pq, zap.NewNop())

		for i := uint64(1); i <= 4; i++ {
			g.assign(&stubEntity{id: i})
		}

		Convey("entities alternate between workers", func() {
			So(g.Workers[0].Len(), ShouldEqual, 2)
			So(g.Workers[1].Len(), ShouldEqual, 2)
		})
	})
}

func TestLeastLoadedAssignment(t *testing.T) {
	Convey("Given a 2-worker group with least-loaded assignment", t, func() {
		pq := entity.NewPendingQueue()
		g := New("test", 2, 1, LeastLoaded, pq, zap.NewNop())
		g.Workers[0].Add(&stubEntity{id: 100})

		Convey("the next assignment goes to the less-loaded worker", func() {
			g.assign(&stubEntity{id: 1})
			So(g.Workers[1].Len(), ShouldEqual, 1)
			So(g.Workers[0].Len(), ShouldEqual, 1)
		})
	})
}

func TestWorkGroupRunsAndJoinsCleanly(t *testing.T) {
	Convey("Given a running work group with no entities", t, func() {
		pq := entity.NewPendingQueue()
		g := New("test", 2, 1, RoundRobin, pq, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		g.StartAll(ctx, func() int64 { return 0 })

		Convey("Wait/WaitExternAgain complete for several ticks without deadlock", func() {
			for i := 0; i < 3; i++ {
				g.Wait(100)
				g.WaitExternAgain()
			}
			cancel()
			time.Sleep(10 * time.Millisecond)
		})
	})
}
