// Command specdma moves data between the host and the DDR of a CERN SPEC
// board over the driver's DMA channel, and programs its FPGA.
package main

import (
	"os"
)

// Version information (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		cerr := classify(err)
		printError(cmd.ErrOrStderr(), cerr)
		os.Exit(cerr.ExitCode)
	}
}
