package ast

type (
	NodeID    uint32
	PayloadID uint32
	// SymbolID is the synthetic number behind every generated symbol and
	// function name.
	SymbolID uint32
)

const (
	NoNodeID    NodeID    = 0
	NoPayloadID PayloadID = 0
	NoSymbolID  SymbolID  = 0
)

func (id NodeID) IsValid() bool    { return id != NoNodeID }
func (id PayloadID) IsValid() bool { return id != NoPayloadID }
func (id SymbolID) IsValid() bool  { return id != NoSymbolID }
