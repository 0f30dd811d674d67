package steiner

import (
	"github.com/n9te9/federation-query-planner/internal/bitset"
	"github.com/n9te9/federation-query-planner/opgraph"
)

// Solver runs Greedy FLAC against a fixed graph. Its flow bookkeeping is
// reused across Run calls (Reset clears only the cross-run
// rootFeedingTerminals bitset, as original_source's GreedyFlac::reset does)
// so a planner can re-run the same solver for several operations without
// reallocating the per-node slices.
type Solver struct {
	g *opgraph.Graph

	saturatedEdges         *bitset.Set
	markedOrSaturatedEdges *bitset.Set
	rootFeedingTerminals   *bitset.Set
	nodeToFeedingTerminals []*bitset.Set
	nodeToFlowRate         []int

	time  float64
	heap  *saturationPQ
	stack []opgraph.NodeID
}

// NewSolver allocates solver state sized to g. The Solver keeps g and runs
// every later Run/RunOnce call against it.
func NewSolver(g *opgraph.Graph) *Solver {
	nodeToFeeding := make([]*bitset.Set, len(g.Nodes))
	for i := range nodeToFeeding {
		nodeToFeeding[i] = bitset.New(0)
	}
	return &Solver{
		g:                      g,
		saturatedEdges:         bitset.New(len(g.Edges)),
		markedOrSaturatedEdges: bitset.New(len(g.Edges)),
		rootFeedingTerminals:   bitset.New(0),
		nodeToFeedingTerminals: nodeToFeeding,
		nodeToFlowRate:         make([]int, len(g.Nodes)),
		heap:                   newSaturationPQ(),
	}
}

// Reset clears which terminals have already been connected, so a fresh Run
// starts from scratch (original_source's GreedyFlac::reset).
func (s *Solver) Reset() {
	s.rootFeedingTerminals.Clear()
}

// Run grows tree until every terminal is connected to the root, by
// repeatedly calling RunOnce.
func (s *Solver) Run(tree *Tree) error {
	return s.RunBounded(tree, 0)
}

// RunBounded is Run with a cap on the number of RunOnce rounds; maxRuns <= 0
// means unbounded. Each round connects at least one more terminal, so this
// is the knob plannerconfig.Config.MaxSteinerRunsPerPlan feeds: a graph that
// can't converge within the bound surfaces as a SolveError instead of
// looping for as many rounds as there are terminals.
func (s *Solver) RunBounded(tree *Tree, maxRuns int) error {
	for runs := 0; ; runs++ {
		if maxRuns > 0 && runs >= maxRuns {
			return &SolveError{Reason: "exceeded configured max Steiner solver rounds"}
		}
		done, err := s.RunOnce(tree)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// RunOnce performs a single saturation round: it finds the cheapest new
// path connecting one more unconnected terminal (or a subtree feeding
// several at once, if their flows merge) into the tree, and reports whether
// every terminal is now connected.
func (s *Solver) RunOnce(tree *Tree) (done bool, err error) {
	if !s.initializeTerminals(tree) {
		return true, nil // nothing left to connect
	}

	for {
		edge, t, ok := s.heap.pop()
		if !ok {
			return false, &SolveError{Reason: "saturation queue emptied before reaching the tree root"}
		}
		s.time = t

		reachedTree, u, v := s.updateFlowRates(tree, edge)
		if !reachedTree {
			continue
		}

		newFeeding := s.nodeToFeedingTerminals[v]
		s.rootFeedingTerminals.UnionWith(newFeeding)
		tree.addEdge(s.g, edge)

		// Reverse traversal: attach v and every node reachable from v via
		// already-saturated outgoing edges to the tree (original_source's
		// "we traverse in the opposite direction to FLAC" comment); u is
		// already in the tree.
		s.stack = append(s.stack[:0], v)
		for len(s.stack) > 0 {
			n := s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]
			tree.Nodes.Insert(int(n))
			for _, eidx := range s.g.OutEdges(n) {
				if s.saturatedEdges.Contains(eidx) {
					tree.addEdge(s.g, eidx)
					s.stack = append(s.stack, s.g.Edges[eidx].To)
				}
			}
		}
		break
	}

	return s.rootFeedingTerminals.Full(len(tree.Terminals)), nil
}

// initializeTerminals resets per-run flow state and seeds the heap with the
// first candidate edge for every terminal not yet connected to the tree.
// Returns false if there was nothing left to seed.
func (s *Solver) initializeTerminals(tree *Tree) bool {
	s.time = 0
	s.heap.clear()
	s.saturatedEdges.Clear()
	s.markedOrSaturatedEdges.Clear()
	for _, fs := range s.nodeToFeedingTerminals {
		fs.Clear()
	}
	for i := range s.nodeToFlowRate {
		s.nodeToFlowRate[i] = 0
	}

	n := len(tree.Terminals)
	s.rootFeedingTerminals.Grow(n)

	hasOne := false
	for ix, terminal := range tree.Terminals {
		if s.rootFeedingTerminals.Contains(ix) {
			continue // already connected in a previous RunOnce call
		}
		hasOne = true
		if edge, ok := s.findNextEdgeInTMinus(int(terminal)); ok {
			saturateTime := s.time + float64(s.g.Edges[edge].Weight)
			s.heap.push(edge, saturateTime)
			feeding := s.nodeToFeedingTerminals[terminal]
			feeding.Grow(n)
			feeding.Insert(ix)
			s.nodeToFlowRate[terminal] = 1
		}
	}
	return hasOne
}

// findNextEdgeInTMinus returns the cheapest incoming edge to node that
// hasn't already been marked or saturated in this run.
func (s *Solver) findNextEdgeInTMinus(node int) (edge int, ok bool) {
	minWeight := int(^uint(0) >> 1)
	found := -1
	for _, eidx := range s.g.InEdges(opgraph.NodeID(node)) {
		if s.markedOrSaturatedEdges.Contains(eidx) {
			continue
		}
		w := s.g.Edges[eidx].Weight
		if w < minWeight {
			minWeight = w
			found = eidx
		}
	}
	if found < 0 {
		return 0, false
	}
	return found, true
}

// updateFlowRates is Algorithm 9's driver: it marks the saturating edge,
// detects degenerate flow, updates downstream flow rates/reschedules their
// saturation times, and schedules v's own next candidate edge. Returns
// (true, u, v) once u is already part of tree (the search has reached the
// existing Steiner tree and should stop).
func (s *Solver) updateFlowRates(tree *Tree, saturatingEdge int) (reachedTree bool, u, v opgraph.NodeID) {
	e := s.g.Edges[saturatingEdge]
	u, v = e.From, e.To

	s.markedOrSaturatedEdges.Insert(saturatingEdge)

	if tree.Nodes.Contains(int(u)) {
		return true, u, v
	}

	degenerate, nextEdges := s.detectDegenerateFlowAndCollect(u, v)
	if !degenerate {
		s.saturatedEdges.Insert(saturatingEdge)

		vFeeding := s.nodeToFeedingTerminals[v]
		extraFlowRate := s.nodeToFlowRate[v]
		for _, eidx := range nextEdges {
			node := s.g.Edges[eidx].To
			s.nodeToFeedingTerminals[node].UnionWith(vFeeding)

			oldRate := s.nodeToFlowRate[node]
			newRate := oldRate + extraFlowRate
			s.nodeToFlowRate[node] = newRate

			if oldRate == 0 {
				saturateTime := s.time + float64(s.g.Edges[eidx].Weight)/float64(newRate)
				s.heap.push(eidx, saturateTime)
			} else if cur, ok := s.heap.timeOf(eidx); ok {
				next := s.time + (cur-s.time)*(float64(oldRate)/float64(newRate))
				s.heap.decreaseTime(eidx, next)
			}
		}
	}

	if edge, ok := s.findNextEdgeInTMinus(int(v)); ok {
		flowRate := s.nodeToFlowRate[v]
		saturateTime := s.time + float64(s.g.Edges[edge].Weight-e.Weight)/float64(flowRate)
		s.heap.push(edge, saturateTime)
	}

	return false, u, v
}

// detectDegenerateFlowAndCollect walks the nodes already connected to u
// through saturated incoming edges, checking whether v's feeding-terminal
// set already overlaps one of them (degenerate: the new path wouldn't add
// any terminal not already being fed some other way) and collecting, for
// each node in that component, its own next candidate edge so the extra
// flow from v can be propagated onto it.
func (s *Solver) detectDegenerateFlowAndCollect(u, v opgraph.NodeID) (degenerate bool, nextEdges []int) {
	newFeeding := s.nodeToFeedingTerminals[v]

	s.stack = append(s.stack[:0], u)
	var collected []int
	for len(s.stack) > 0 {
		current := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		currentFeeding := s.nodeToFeedingTerminals[current]
		if currentFeeding.Intersects(newFeeding) {
			return true, nil
		}

		if edge, ok := s.findNextEdgeInTMinus(int(current)); ok {
			collected = append(collected, edge)
		}

		for _, eidx := range s.g.InEdges(current) {
			if s.saturatedEdges.Contains(eidx) {
				s.stack = append(s.stack, s.g.Edges[eidx].From)
			}
		}
	}
	return false, collected
}
