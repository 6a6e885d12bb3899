package sim

import (
	"gridlock/cell"
	"gridlock/conflux"
	"gridlock/person"
	"gridlock/roadnetwork"
	"gridlock/segment"
)

// DemoNetwork builds a small synthetic road network and one Conflux per
// intersection, wired with Downstream links. Loading a real network from a
// database or XML file is an out-of-scope collaborator concern (spec §1);
// this exists so gridlock is runnable standalone against something, and as
// the fixture a deployment's own loader can be swapped in for. strategy is
// the run's configured cell.MutexStrategy (simconfig.Config.CellStrategy),
// threaded down to every seeded person's Position cell.
func DemoNetwork(strategy cell.MutexStrategy) (*roadnetwork.Network, []*conflux.Conflux) {
	net := roadnetwork.NewNetwork()

	nodeIDs := []roadnetwork.NodeID{1, 2, 3, 4}
	spacingCM := int64(50_000) // 500m between intersections
	for i, id := range nodeIDs {
		net.Nodes[id] = &roadnetwork.Node{ID: id, XCM: int64(i) * spacingCM, YCM: 0}
	}

	type linkSpec struct {
		id       roadnetwork.LinkID
		from, to roadnetwork.NodeID
	}
	links := []linkSpec{
		{id: 10, from: 1, to: 2},
		{id: 20, from: 2, to: 3},
		{id: 30, from: 3, to: 4},
	}

	const maxSpeedCMPerSec = 1_400 // ~50 km/h
	segID := roadnetwork.SegmentID(100)
	segIDByLink := make(map[roadnetwork.LinkID]roadnetwork.SegmentID, len(links))
	confluxByNode := make(map[roadnetwork.NodeID]*conflux.Conflux)
	for _, id := range nodeIDs {
		confluxByNode[id] = conflux.New(uint64(id), 0, id, net, 2)
	}

	for _, ls := range links {
		seg := &roadnetwork.RoadSegment{
			ID:               segID,
			StartNode:        ls.from,
			EndNode:          ls.to,
			LengthCM:         spacingCM,
			MaxSpeedCMPerSec: maxSpeedCMPerSec,
			Lanes:            make([]roadnetwork.Lane, 2),
		}
		net.Segments[segID] = seg
		net.Links[ls.id] = &roadnetwork.Link{ID: ls.id, From: ls.from, To: ls.to, Segments: []roadnetwork.SegmentID{segID}}

		stats := segment.New(segID, len(seg.Lanes), float64(maxSpeedCMPerSec))
		confluxByNode[ls.to].AddLink(ls.id, []*segment.Stats{stats})
		segIDByLink[ls.id] = segID

		segID++
	}

	// Chain downstream handoffs: link 10 feeds conflux-at-2, whose outgoing
	// link 20 feeds conflux-at-3, and so on.
	confluxByNode[2].Downstream[20] = confluxByNode[3]
	confluxByNode[3].Downstream[30] = confluxByNode[4]

	seedDemoDrivers(net, confluxByNode[2], segIDByLink, strategy)

	confluxes := make([]*conflux.Conflux, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		confluxes = append(confluxes, confluxByNode[id])
	}
	return net, confluxes
}

// seedDemoDrivers places a handful of drivers onto the network's first link
// so the kernel's tick loop has something to move and report on. Each
// drives the full chain of links end to end.
func seedDemoDrivers(net *roadnetwork.Network, entry *conflux.Conflux, segIDByLink map[roadnetwork.LinkID]roadnetwork.SegmentID, strategy cell.MutexStrategy) {
	path := []roadnetwork.SegmentID{segIDByLink[10], segIDByLink[20], segIDByLink[30]}
	facetFor := func(st person.SubTrip) (person.Behavior, person.Movement) {
		return person.DefaultBehavior, person.NewDriverMovement(net, 1_400)
	}
	const demoDriverCount = 3
	for i := 0; i < demoDriverCount; i++ {
		trip := []person.SubTrip{{Role: person.RoleDriver, Origin: 1, Dest: 4, Path: path}}
		p := person.NewWithStrategy(int64(i)*1000, trip, 42, 0, facetFor, strategy)
		entry.Seed(p, 10)
	}
}
