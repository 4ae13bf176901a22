package main

import (
	"github.com/Paintersrp/corral/internal/cli"
	"github.com/Paintersrp/corral/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
