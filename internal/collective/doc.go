// Package collective provides group-wide broadcast and reduce operations
// among a fixed set of peer workers.
//
// # Transports
//
// An Exchanger is the raw transport of one rank in a group of Size() ranks.
// It offers two primitives, both with implicit barrier semantics: no rank
// leaves the call until every rank of the group has entered the matching
// call.
//
// Broadcast: the rank named root sends its buffer, every rank receives it.
//
// AllToAll: every rank sends its buffer, every rank receives the buffers of
// all ranks indexed by rank.
//
// Two transports are provided:
//
//	Group/Member  goroutines in one process, generation-counted barrier
//	Peer          one HTTP listener per rank, logical clock per call
//
// # Channel
//
// Channel layers the operations the relaxation engine needs on top of any
// Exchanger: BroadcastFrom, AllReduceOr and the element-wise AllReduceMin.
//
// # Failure model
//
// There is no cancellation. A rank that never enters a call stalls the whole
// group. Peer accepts an optional timeout for tests and operators; it is off
// by default. Every failure surfaced by Channel wraps ErrCollective and must
// be treated as fatal for the group.
package collective
