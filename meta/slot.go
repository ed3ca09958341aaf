package meta

import (
	"fmt"
	"strings"
)

// Slot is the dispatch point a member occupies. SlotIndex is ordinary
// named lookup; every other slot is a Lua metamethod.
type Slot uint8

const (
	SlotIndex Slot = iota
	SlotCall
	SlotToString
	SlotLen
	SlotConcat
	SlotEq
	SlotUnm
	SlotAdd
	SlotSub
	SlotMul
	SlotDiv
	SlotMod
	SlotPow
	SlotLt
	SlotLe
)

var slotInfo = [...]struct {
	name       string
	metamethod string
}{
	SlotIndex:    {"INDEX", ""},
	SlotCall:     {"CALL", "__call"},
	SlotToString: {"TOSTRING", "__tostring"},
	SlotLen:      {"LEN", "__len"},
	SlotConcat:   {"CONCAT", "__concat"},
	SlotEq:       {"EQ", "__eq"},
	SlotUnm:      {"UNM", "__unm"},
	SlotAdd:      {"ADD", "__add"},
	SlotSub:      {"SUB", "__sub"},
	SlotMul:      {"MUL", "__mul"},
	SlotDiv:      {"DIV", "__div"},
	SlotMod:      {"MOD", "__mod"},
	SlotPow:      {"POW", "__pow"},
	SlotLt:       {"LT", "__lt"},
	SlotLe:       {"LE", "__le"},
}

func (s Slot) String() string {
	if int(s) < len(slotInfo) {
		return slotInfo[s].name
	}
	return fmt.Sprintf("SLOT(%d)", uint8(s))
}

// Metamethod returns the metatable key of an operator slot, or "" for
// SlotIndex.
func (s Slot) Metamethod() string {
	if int(s) < len(slotInfo) {
		return slotInfo[s].metamethod
	}
	return ""
}

// Binary reports whether the slot's metamethod receives two operands.
func (s Slot) Binary() bool {
	switch s {
	case SlotConcat, SlotEq, SlotAdd, SlotSub, SlotMul, SlotDiv, SlotMod, SlotPow, SlotLt, SlotLe:
		return true
	}
	return false
}

// Commutative reports whether a binary slot may take its operands in
// either order.
func (s Slot) Commutative() bool {
	switch s {
	case SlotEq, SlotAdd, SlotMul:
		return true
	}
	return false
}

// OperatorSlots lists every slot except SlotIndex.
func OperatorSlots() []Slot {
	out := make([]Slot, 0, len(slotInfo)-1)
	for s := SlotCall; int(s) < len(slotInfo); s++ {
		out = append(out, s)
	}
	return out
}

// ParseSlot accepts the slot name ("TOSTRING") or its metamethod
// ("__tostring"), case-insensitively.
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	for i, info := range slotInfo {
		if strings.EqualFold(s, info.name) || (info.metamethod != "" && strings.EqualFold(s, info.metamethod)) {
			return Slot(i), nil
		}
	}
	return SlotIndex, fmt.Errorf("meta: unknown slot %q", s)
}
