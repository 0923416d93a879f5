package work

// StepKind classifies a workflow step's fan-in/fan-out behavior. The kind is
// fixed at job submission and drives dispatch gating, child emission, and
// batching.
type StepKind string

const (
	// StepSequentialQuery pages granules out of the source catalog. Exactly
	// one of its work items may be ready or running at a time, and it is
	// always step 1.
	StepSequentialQuery StepKind = "sequential-query"
	// StepMap runs its service once per input catalog.
	StepMap StepKind = "map"
	// StepAggregate consumes every output of the previous step as one input.
	StepAggregate StepKind = "aggregate"
	// StepBatchedAggregate consumes the previous step's outputs in bounded
	// groups, one work item per sealed batch.
	StepBatchedAggregate StepKind = "batched-aggregate"
)

func (k StepKind) Sequential() bool { return k == StepSequentialQuery }

func (k StepKind) Aggregating() bool {
	return k == StepAggregate || k == StepBatchedAggregate
}

func (k StepKind) Batched() bool { return k == StepBatchedAggregate }

func (k StepKind) Valid() bool {
	switch k {
	case StepSequentialQuery, StepMap, StepAggregate, StepBatchedAggregate:
		return true
	default:
		return false
	}
}
