package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dreamware/hopgraph/internal/graph"
)

// ErrParse is returned when a payload is not a valid record.
var ErrParse = errors.New("malformed record")

// Record is what a worker group reports to the aggregator.
type Record struct {
	WorkerID  int
	Distances graph.Distances
}

type wireRecord struct {
	WorkerID  *int        `json:"worker_id"`
	Distances *[]*float64 `json:"distances"`
}

// Marshal encodes r as the JSON payload of a frame.
func Marshal(r Record) ([]byte, error) {
	id := r.WorkerID
	hops := make([]*float64, len(r.Distances))
	for i := range r.Distances {
		if r.Distances.IsReachable(i) {
			v := r.Distances[i]
			hops[i] = &v
		}
	}
	return json.Marshal(wireRecord{WorkerID: &id, Distances: &hops})
}

// Unmarshal decodes a frame payload. Both fields are required.
func Unmarshal(payload []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(payload, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if w.WorkerID == nil {
		return Record{}, fmt.Errorf("%w: missing worker_id", ErrParse)
	}
	if w.Distances == nil {
		return Record{}, fmt.Errorf("%w: missing distances", ErrParse)
	}
	d := make(graph.Distances, len(*w.Distances))
	for i, v := range *w.Distances {
		switch {
		case v == nil:
			d[i] = graph.Unreachable
		case *v < 0 || math.IsNaN(*v):
			return Record{}, fmt.Errorf("%w: distance %d is %v", ErrParse, i, *v)
		default:
			d[i] = *v
		}
	}
	return Record{WorkerID: *w.WorkerID, Distances: d}, nil
}
