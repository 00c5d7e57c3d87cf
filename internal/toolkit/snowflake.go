package toolkit

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var snowNode *snowflake.Node

func init() {
	var err error
	snowNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// UniqueID returns a sortable unique ID used to tag merge runs in logs and
// the ledger.
func UniqueID() string {
	return fmt.Sprintf("%d", snowNode.Generate())
}
