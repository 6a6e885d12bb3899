package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"gridlock/cell"
	"gridlock/dashboard"
	"gridlock/report"
	"gridlock/simconfig"
)

func newTestKernel(t *testing.T, endTick int64) (*Kernel, *dashboard.Hub) {
	t.Helper()

	cfg := &simconfig.Config{
		BaseGranMS: 100,
		EndTick:    endTick,
		WorkGroups: []simconfig.WorkGroupConfig{
			{Name: "main", NumWorkers: 2, TickStep: 1},
		},
	}

	network, confluxes := DemoNetwork(cell.Buffered)
	sink, err := report.NewSink(&bytes.Buffer{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	hub := dashboard.NewHub(4)

	k, err := New(cfg, network, confluxes, sink, hub, prometheus.NewRegistry(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return k, hub
}

func TestKernelRunsToEndTickAndStops(t *testing.T) {
	Convey("Given a kernel built against the demo network with a 3-tick horizon", t, func() {
		k, _ := newTestKernel(t, 3)

		Convey("Run returns nil once endTick is reached", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := k.Run(ctx)
			So(err, ShouldBeNil)
			So(k.tickIdx, ShouldEqual, int64(3))
		})
	})
}

func TestKernelPublishesSnapshotsToDashboard(t *testing.T) {
	Convey("Given a kernel with a dashboard subscriber", t, func() {
		k, hub := newTestKernel(t, 2)
		updates, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		Convey("running the kernel delivers at least one snapshot", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- k.Run(ctx) }()

			select {
			case <-updates:
			case err := <-done:
				t.Fatalf("kernel stopped before publishing: %v", err)
			case <-time.After(4 * time.Second):
				t.Fatal("timed out waiting for a dashboard snapshot")
			}

			<-done
		})
	})
}

func TestKernelRejectsConfigWithNoWorkGroups(t *testing.T) {
	Convey("Given a config with no work groups", t, func() {
		cfg := &simconfig.Config{BaseGranMS: 100, EndTick: 1}
		network, confluxes := DemoNetwork(cell.Buffered)
		sink, _ := report.NewSink(&bytes.Buffer{}, 1)
		hub := dashboard.NewHub(1)

		Convey("New returns an error", func() {
			_, err := New(cfg, network, confluxes, sink, hub, prometheus.NewRegistry(), zap.NewNop())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFaultStopsRunEarly(t *testing.T) {
	Convey("Given a kernel with a huge end tick", t, func() {
		k, _ := newTestKernel(t, 1_000_000)

		Convey("calling Fault causes Run to return an error quickly", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- k.Run(ctx) }()

			time.Sleep(50 * time.Millisecond)
			k.Fault()

			select {
			case err := <-done:
				So(err, ShouldNotBeNil)
			case <-time.After(4 * time.Second):
				t.Fatal("timed out waiting for faulted run to stop")
			}
		})
	})
}
