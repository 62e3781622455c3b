package claims

// Workflow is the transition table: for each current status, the set of
// target statuses an action may move the claim to.
type Workflow struct {
	name  string
	edges map[Status]map[Status]struct{}
}

// FlatWorkflow allows every action from every status, including repeating
// the current one.
func FlatWorkflow() Workflow {
	edges := make(map[Status]map[Status]struct{}, len(Statuses))
	for _, from := range Statuses {
		edges[from] = make(map[Status]struct{}, len(actionTargets))
		for _, to := range actionTargets {
			edges[from][to] = struct{}{}
		}
	}
	return Workflow{name: "flat", edges: edges}
}

// StrictWorkflow makes Approved terminal and only lets Denied claims be sent
// back for resubmission.
func StrictWorkflow() Workflow {
	return Workflow{
		name: "strict",
		edges: map[Status]map[Status]struct{}{
			StatusPending: {
				StatusApproved: {},
				StatusDenied:   {},
				StatusResubmit: {},
			},
			StatusResubmit: {
				StatusApproved: {},
				StatusDenied:   {},
				StatusResubmit: {},
			},
			StatusDenied: {
				StatusResubmit: {},
			},
		},
	}
}

func (w Workflow) Name() string { return w.name }

// Allows reports whether a claim in status from may move to status to.
func (w Workflow) Allows(from, to Status) bool {
	_, ok := w.edges[from][to]
	return ok
}

// unconditional reports whether every known target is reachable from every
// status, in which case the current status need not be read first.
func (w Workflow) unconditional() bool {
	for _, from := range Statuses {
		for _, to := range actionTargets {
			if !w.Allows(from, to) {
				return false
			}
		}
	}
	return true
}
