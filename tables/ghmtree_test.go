package tables

import (
	"testing"

	"mco/codes"
)

func TestGHMNodeLeaf(t *testing.T) {
	n := GHMNode{
		Function:      LeafFunction,
		Param1:        4,  // CMD
		Param2:        'C', // Type
		ChildrenIndex: uint16(2)<<8 | uint16('1'), // sequence 2, mode '1'
		ChildrenCount: 201,
	}
	if !n.IsLeaf() {
		t.Fatal("expected leaf node")
	}
	ghm, errCode := n.Leaf()
	want := codes.GHM{GHMRoot: codes.GHMRoot{CMD: 4, Type: 'C', Sequence: 2}, Mode: '1'}
	if ghm != want {
		t.Errorf("got %v, want %v", ghm, want)
	}
	if errCode != 201 {
		t.Errorf("got error code %d, want 201", errCode)
	}
}

func TestGHMNodeLongJumpTarget(t *testing.T) {
	n := GHMNode{Function: LongJumpFunction, Param1: 0x01, Param2: 0x02, ChildrenIndex: 0x0304}
	got := n.LongJumpTarget()
	want := uint32(0x01020304)
	if got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
}

func TestGHMTreeValidate(t *testing.T) {
	tree := GHMTree{Nodes: []GHMNode{
		{Function: 1, ChildrenIndex: 1, ChildrenCount: 2},
		{Function: LeafFunction, ChildrenCount: 0},
		{Function: LeafFunction, ChildrenCount: 0},
	}}
	if err := tree.Validate(); err != nil {
		t.Fatalf("expected valid tree, got %v", err)
	}
}

func TestGHMTreeValidateEscapingChildren(t *testing.T) {
	tree := GHMTree{Nodes: []GHMNode{
		{Function: 1, ChildrenIndex: 5, ChildrenCount: 2},
	}}
	if err := tree.Validate(); err == nil {
		t.Fatal("expected error for children range escaping the node array")
	}
}
