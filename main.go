package main

import (
	"context"

	"github.com/bjulian5/cq/cmd"
)

func main() {
	ctx := context.Background()
	cmd.Execute(ctx)
}
