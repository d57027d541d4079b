package main

import (
	"fmt"
	"os"
)

var version = "devel"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case versionMode:
		fmt.Println("xtiny", version)
	case monMode:
		checkf(runMon(loadConfigOrDefault().Chip), "monitor error")
	default:
		checkf(runTrace(cli.Trace, loadConfigOrDefault()), "trace error")
	}
}
