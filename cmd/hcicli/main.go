package main

import (
	"github.com/robotalks/hci.go/pkg/cli/sh"
	"github.com/robotalks/hci.go/pkg/env/client"

	_ "github.com/robotalks/hci.go/pkg/cli/cmds/hci"
)

//go-build: CGO_ENABLED=0

func init() {
	client.SetupFlags()
}

func main() {
	sh.Main()
}
