package main

//go-build: CGO_ENABLED=0

import (
	"github.com/David-Feldt/waffle-car/pkg/cli/sh"
	"github.com/David-Feldt/waffle-car/pkg/drive"

	_ "github.com/David-Feldt/waffle-car/pkg/cli/cmds/drive"
)

func init() {
	drive.SetupFlags()
}

func main() {
	sh.Main()
}
