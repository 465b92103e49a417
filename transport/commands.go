package transport

import (
	"fmt"

	"github.com/jrife/roost/codec"
)

// Op identifies a command variant on the wire
type Op uint32

const (
	OpUnknown Op = iota
	OpPing
	OpPut
	OpGet
	OpGetAll
	OpGetAllWhere
	OpExists
	OpRemove
	OpClear
	OpAddAll
	OpCount
	OpToggle
	OpPutAll
)

var opNames = map[Op]string{
	OpUnknown:     "unknown",
	OpPing:        "ping",
	OpPut:         "put",
	OpGet:         "get",
	OpGetAll:      "getAll",
	OpGetAllWhere: "getAllWhere",
	OpExists:      "exists",
	OpRemove:      "remove",
	OpClear:       "clear",
	OpAddAll:      "addAll",
	OpCount:       "count",
	OpToggle:      "toggle",
	OpPutAll:      "putAll",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", uint32(op))
}

// Command is one of the command variants below
type Command interface {
	Op() Op
}

// Target names the box a command runs against
// and the tag the box holds
type Target struct {
	Box string
	Tag codec.Tag
}

// Ping asks the owner to prove it is alive
type Ping struct{}

type Put struct {
	Target
	Key   interface{}
	Value interface{}
}

type Get struct {
	Target
	Key interface{}
}

type GetAll struct {
	Target
}

// GetAllWhere selects values with the predicate
// registered in the owner under Predicate
type GetAllWhere struct {
	Target
	Predicate string
}

type Exists struct {
	Target
	Key interface{}
}

type Remove struct {
	Target
	Key interface{}
}

type Clear struct {
	Target
}

type AddAll struct {
	Target
	Values []interface{}
}

type Count struct {
	Target
}

type Toggle struct {
	Target
	Key   interface{}
	Value interface{}
}

// PutAll stores each value under the key returned by the key
// function registered in the owner under KeyFunc
type PutAll struct {
	Target
	Values  []interface{}
	KeyFunc string
}

// Unknown stands in for a command this build doesn't recognize
type Unknown struct {
	Code Op
}

func (Ping) Op() Op        { return OpPing }
func (Put) Op() Op         { return OpPut }
func (Get) Op() Op         { return OpGet }
func (GetAll) Op() Op      { return OpGetAll }
func (GetAllWhere) Op() Op { return OpGetAllWhere }
func (Exists) Op() Op      { return OpExists }
func (Remove) Op() Op      { return OpRemove }
func (Clear) Op() Op       { return OpClear }
func (AddAll) Op() Op      { return OpAddAll }
func (Count) Op() Op       { return OpCount }
func (Toggle) Op() Op      { return OpToggle }
func (PutAll) Op() Op      { return OpPutAll }
func (c Unknown) Op() Op   { return c.Code }
