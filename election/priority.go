package election

import (
	"slices"

	"github.com/spaolacci/murmur3"
)

// rotationBonus exceeds any 32 bit hash so the rotation slot always wins.
const rotationBonus int64 = 1 << 40

// members returns the sorted, de-duplicated membership including myID.
func members(myID string, peers []string) []string {
	set := make([]string, 0, len(peers)+1)
	set = append(set, myID)
	set = append(set, peers...)
	slices.Sort(set)
	return slices.Compact(set)
}

// PriorityHash ranks nodeID within the membership formed by myID and peers.
// The node whose sorted index equals round mod membership size receives a
// bonus, which rotates eligibility from round to round.
func PriorityHash(nodeID string, myID string, peers []string, round uint32) int64 {
	priority := int64(murmur3.Sum32([]byte(nodeID)))

	set := members(myID, peers)
	index := slices.Index(set, nodeID)
	if index >= 0 && index == int(round%uint32(len(set))) {
		priority += rotationBonus
	}

	return priority
}

// outranks reports whether a is ahead of b, equal hashes fall back to id order.
func outranks(a string, b string, myID string, peers []string, round uint32) bool {
	pa := PriorityHash(a, myID, peers, round)
	pb := PriorityHash(b, myID, peers, round)
	if pa != pb {
		return pa > pb
	}
	return a > b
}

// successor is the next id after myID in sorted membership, wrapping around.
func successor(myID string, peers []string) string {
	set := members(myID, peers)
	if len(set) < 2 {
		return ""
	}

	index := slices.Index(set, myID)
	return set[(index+1)%len(set)]
}
