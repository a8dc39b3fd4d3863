package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohwr/spec-dma/pkg/firmware"
)

func newProgramCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "program <bitstream>",
		Short: "Program the FPGA with a bitstream",
		Long: `program loads a bitstream into the board's FPGA through the kernel
firmware loader. The host-wide firmware search path is pointed at the
bitstream's directory during the load and restored afterwards.

Do not program a board while another process is transferring data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.device(nil)
			if err != nil {
				return err
			}

			loader := firmware.NewLoader(
				firmware.WithSearchPath(firmware.SearchPathFile(a.cfg.FirmwareSearchPath)),
				firmware.WithLogger(a.logger(cmd)),
			)
			if err := loader.Program(dev, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Programmed %s with %s\n", dev, args[0])
			return nil
		},
	}
}
