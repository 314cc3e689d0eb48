package tables

import (
	"fmt"

	"mco/codes"
)

// LeafFunction is the decision-tree function id that marks a leaf: it
// emits a GHM and an error code instead of branching.
const LeafFunction = 12

// LongJumpFunction extends ChildrenIndex with the node's two parameter
// bytes, letting a tree exceed 65536 nodes.
const LongJumpFunction = 20

// GHMNode is one 6-byte record of the decision tree. Branch nodes use
// Function/Param1/Param2 to select a child among
// [ChildrenIndex, ChildrenIndex+ChildrenCount); leaf nodes (Function ==
// LeafFunction) instead pack a GHM and an error code into the same six
// bytes (see Leaf).
type GHMNode struct {
	Function      uint8
	Param1        uint8
	Param2        uint8
	ChildrenIndex uint16
	ChildrenCount uint8
}

// IsLeaf reports whether n is a leaf node.
func (n GHMNode) IsLeaf() bool {
	return n.Function == LeafFunction
}

// Leaf decodes a leaf node's packed payload: Param1/Param2/ChildrenIndex's
// two bytes/ChildrenCount double as CMD/Type/Sequence/Mode/error-code.
func (n GHMNode) Leaf() (ghm codes.GHM, errorCode uint8) {
	sequence := uint8(n.ChildrenIndex >> 8)
	mode := byte(n.ChildrenIndex)
	ghm = codes.GHM{
		GHMRoot: codes.GHMRoot{CMD: n.Param1, Type: n.Param2, Sequence: sequence},
		Mode:    mode,
	}
	return ghm, n.ChildrenCount
}

// LongJumpTarget computes the extended child index for a LongJumpFunction
// node: the two parameter bytes extend ChildrenIndex into a 32-bit offset.
func (n GHMNode) LongJumpTarget() uint32 {
	return uint32(n.ChildrenIndex) | uint32(n.Param1)<<24 | uint32(n.Param2)<<16
}

// GHMTree is the decision tree for one table index: an ordered node array
// walked from node 0.
type GHMTree struct {
	Nodes []GHMNode
}

// Validate checks that no node's children range escapes the array.
func (t GHMTree) Validate() error {
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		var end uint32
		if n.Function == LongJumpFunction {
			end = n.LongJumpTarget() + 1
		} else {
			end = uint32(n.ChildrenIndex) + uint32(n.ChildrenCount)
		}
		if end > uint32(len(t.Nodes)) {
			return fmt.Errorf("tables: GHM tree node %d children range escapes %d nodes", i, len(t.Nodes))
		}
	}
	return nil
}
