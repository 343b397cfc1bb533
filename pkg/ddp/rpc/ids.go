package rpc

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces correlation ids. Ids only need to be unique among
// the requests pending on one correlator.
type IDGenerator interface {
	NextID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NextID() string { return f() }

type sequentialIDs struct {
	next uint64
}

func (g *sequentialIDs) NextID() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

// SequentialIDs returns a generator yielding "1", "2", "3", ...
func SequentialIDs() IDGenerator {
	return &sequentialIDs{}
}

// RandomIDs returns a generator yielding random UUIDs.
func RandomIDs() IDGenerator {
	return IDGeneratorFunc(uuid.NewString)
}
