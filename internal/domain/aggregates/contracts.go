package aggregates

// Serialization names the scope under which an aggregate's writes are ordered.
type Serialization string

const (
	// SerializedPerUser means writes for one user run one at a time, while
	// different users proceed in parallel.
	SerializedPerUser Serialization = "per_user"
)

// Contract describes what an aggregate guarantees to its callers.
type Contract struct {
	Name          string
	Serialization Serialization
	// Invariants lists the rules every committed write preserves.
	Invariants []string
}

type Aggregate interface {
	Contract() Contract
}

// Guarantees reports whether the contract lists the invariant.
func (c Contract) Guarantees(invariant string) bool {
	for _, inv := range c.Invariants {
		if inv == invariant {
			return true
		}
	}
	return false
}
