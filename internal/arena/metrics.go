package arena

import (
	"fmt"

	units "github.com/docker/go-units"
)

// Metrics is a snapshot of a region's usage.
type Metrics struct {
	Generation  uint64
	Used        int
	Capacity    int
	Allocations int
	Utilization float64
}

// Metrics returns usage statistics for the region.
func (a *Arena) Metrics() Metrics {
	m := Metrics{
		Generation:  a.generation,
		Used:        a.used,
		Capacity:    len(a.buf),
		Allocations: a.allocations,
	}
	if m.Capacity > 0 {
		m.Utilization = float64(m.Used) / float64(m.Capacity)
	}
	return m
}

func (m Metrics) String() string {
	return fmt.Sprintf("generation %d: %s of %s used (%.1f%%) in %d allocations",
		m.Generation,
		units.BytesSize(float64(m.Used)),
		units.BytesSize(float64(m.Capacity)),
		m.Utilization*100,
		m.Allocations)
}
