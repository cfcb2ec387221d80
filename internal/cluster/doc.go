// Package cluster describes worker group membership: how many ranks a group
// has, which rank this process is, and where every rank's collective
// endpoint lives.
//
// Group bootstrap is static. Every process of a group is started with the
// same peer list and its own rank, typically from the environment:
//
//	GROUP_SIZE=3 GROUP_RANK=1 \
//	GROUP_PEERS=w0:7000,w1:7000,w2:7000 ./worker
//
// The group size is fixed for the whole run; there is no join or leave.
// Rank 0 is the coordinator: its vector is authoritative and it is the rank
// that reports the converged result to the aggregator.
package cluster
