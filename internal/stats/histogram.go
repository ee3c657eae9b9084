package stats

import (
	"fmt"
	"strings"

	"github.com/tuannm99/heapdb/internal/types"
)

// IntHistogram is a fixed-width bucket histogram over one integer
// field, used by the planner to estimate predicate selectivity. Space
// and per-value time are constant in the number of values added.
type IntHistogram struct {
	buckets  int
	min, max int32
	counts   []int
	total    int
}

// NewIntHistogram splits [min, max] into at most buckets equi-width
// buckets. Narrow domains get one bucket per value so no bucket spans
// zero integers. Requires max > min.
func NewIntHistogram(buckets int, min, max int32) (*IntHistogram, error) {
	if max <= min {
		return nil, fmt.Errorf("stats: invalid histogram domain [%d, %d]", min, max)
	}
	width := int(max) - int(min) + 1
	if width < buckets {
		buckets = width
	}
	return &IntHistogram{
		buckets: buckets,
		min:     min,
		max:     max,
		counts:  make([]int, buckets),
	}, nil
}

func (h *IntHistogram) bucketOf(v int32) int {
	return h.buckets * (int(v) - int(h.min)) / (int(h.max) - int(h.min) + 1)
}

// bucketRange returns [bmin, bmax) for bucket i: exactly the values
// bucketOf maps to i.
func (h *IntHistogram) bucketRange(i int) (int, int) {
	width := int(h.max) - int(h.min) + 1
	bmin := int(h.min) + (i*width+h.buckets-1)/h.buckets
	bmax := int(h.min) + ((i+1)*width+h.buckets-1)/h.buckets
	return bmin, bmax
}

// AddValue records one value. Out-of-range values are ignored.
func (h *IntHistogram) AddValue(v int32) {
	if v < h.min || v > h.max {
		return
	}
	h.counts[h.bucketOf(v)]++
	h.total++
}

// Total returns the number of values added.
func (h *IntHistogram) Total() int { return h.total }

// EstimateSelectivity returns the estimated fraction of recorded values
// satisfying "value op v", in [0, 1].
func (h *IntHistogram) EstimateSelectivity(op types.Predicate, v int32) float64 {
	if v < h.min {
		switch op {
		case types.GreaterThan, types.GreaterThanOrEqual, types.NotEqual:
			return 1.0
		default:
			return 0.0
		}
	}
	if v > h.max {
		switch op {
		case types.LessThan, types.LessThanOrEqual, types.NotEqual:
			return 1.0
		default:
			return 0.0
		}
	}
	if h.total == 0 {
		return 0.0
	}

	i := h.bucketOf(v)
	bmin, bmax := h.bucketRange(i)
	width := float64(bmax - bmin)
	count := float64(h.counts[i])
	total := float64(h.total)

	switch op {
	case types.Equals:
		return count / (total * width)

	case types.NotEqual:
		return 1.0 - count/(total*width)

	case types.GreaterThan:
		sel := count * float64(bmax-int(v)-1) / width
		for j := i + 1; j < h.buckets; j++ {
			sel += float64(h.counts[j])
		}
		return sel / total

	case types.GreaterThanOrEqual:
		sel := count * float64(bmax-int(v)) / width
		for j := i + 1; j < h.buckets; j++ {
			sel += float64(h.counts[j])
		}
		return sel / total

	case types.LessThan:
		sel := count * float64(int(v)-bmin) / width
		for j := 0; j < i; j++ {
			sel += float64(h.counts[j])
		}
		return sel / total

	case types.LessThanOrEqual:
		sel := count * float64(int(v)-bmin+1) / width
		for j := 0; j < i; j++ {
			sel += float64(h.counts[j])
		}
		return sel / total

	default:
		return 1.0
	}
}

// AvgSelectivity returns 1.0 whatever values were recorded; it does not
// average anything over the buckets.
func (h *IntHistogram) AvgSelectivity() float64 {
	return 1.0
}

func (h *IntHistogram) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "hist[%d..%d]", h.min, h.max)
	for i, c := range h.counts {
		bmin, bmax := h.bucketRange(i)
		fmt.Fprintf(&sb, " [%d,%d)=%d", bmin, bmax, c)
	}
	return sb.String()
}
