package main

import (
	"github.com/fleetworks/wcs-go/internal/adapters/cli"
)

func main() {
	cli.Execute()
}
