package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Transfer and journal numbers are a fixed prefix plus a snowflake id
// (41 bit time, 10 bit node, 12 bit sequence), so they are unique across
// nodes and sort by creation time.

var (
	node     *snowflake.Node
	initOnce sync.Once
	initErr  error
)

// Init sets the node id (0-1023). Only the first call has any effect.
func Init(nodeID int64) error {
	initOnce.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// NextID falls back to node 1 when Init was never called.
func NextID() int64 {
	if err := Init(1); err != nil {
		panic(fmt.Sprintf("idgen: %v", err))
	}
	return node.Generate().Int64()
}

// GenerateTransferNo e.g. TRF1771234567890123456
func GenerateTransferNo() string {
	return fmt.Sprintf("TRF%d", NextID())
}

func GenerateEntryNo() string {
	return fmt.Sprintf("JNL%d", NextID())
}
