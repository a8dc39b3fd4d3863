package main

import (
	"errors"
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
)

type boardView struct {
	ID  string `json:"pci_id" yaml:"pci_id"`
	DMA string `json:"dma" yaml:"dma"`
}

type metadataView struct {
	Vendor       string `json:"vendor" yaml:"vendor"`
	Device       string `json:"device" yaml:"device"`
	Version      string `json:"version" yaml:"version"`
	Capabilities string `json:"capabilities" yaml:"capabilities"`
	LittleEndian bool   `json:"little_endian" yaml:"little_endian"`
}

type infoView struct {
	ID       string        `json:"pci_id" yaml:"pci_id"`
	Board    string        `json:"board" yaml:"board"`
	DMA      string        `json:"dma" yaml:"dma"`
	Firmware string        `json:"firmware" yaml:"firmware"`
	Channel  string        `json:"channel" yaml:"channel"`
	Metadata *metadataView `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func newScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List SPEC boards with a DMA channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}

			boards, err := device.NewScannerAt(cfg.DebugfsRoot).Scan()
			if err != nil {
				return &cliError{
					Message:  err.Error(),
					Hint:     "Mount debugfs and load the SPEC driver (usually needs root)",
					ExitCode: ExitUnavailable,
				}
			}

			views := make([]boardView, 0, len(boards))
			for _, b := range boards {
				views = append(views, boardView{ID: b.ID, DMA: b.Paths.DMA})
			}
			if done, err := formatOutput(cmd.OutOrStdout(), a.output, views); done {
				return err
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No SPEC boards found")
				return nil
			}
			fmt.Fprintf(out, "Found %d SPEC board(s):\n", len(views))
			for i, v := range views {
				fmt.Fprintf(out, "  [%d] %s  %s\n", i, v.ID, v.DMA)
			}
			return nil
		},
	}
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [pci-id]",
		Short: "Show board paths, channel state and gateware metadata",
		Long: `Show board paths, channel state and gateware metadata.

The channel state is found by opening and closing the board's DMA file.
Opening the channel may reset the DMA engine of the board, so do not run
info against a board whose DMA engine is in use outside this tool.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.device(args)
			if err != nil {
				return err
			}
			channel, err := channelState(dev, a.leaseOptions(cmd))
			if err != nil {
				return err
			}

			paths := dev.Paths()
			view := infoView{
				ID:       dev.ID(),
				Board:    paths.Board,
				DMA:      paths.DMA,
				Firmware: paths.Firmware,
				Channel:  channel,
			}
			if meta, err := dev.Metadata(); err == nil {
				view.Metadata = &metadataView{
					Vendor:       fmt.Sprintf("%#08x", meta.Vendor),
					Device:       fmt.Sprintf("%#08x", meta.Device),
					Version:      meta.VersionString(),
					Capabilities: fmt.Sprintf("%#08x", meta.Capabilities),
					LittleEndian: meta.IsLittleEndian(),
				}
			}

			if done, err := formatOutput(cmd.OutOrStdout(), a.output, view); done {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Board:\t%s\n", dev)
			fmt.Fprintf(w, "  Directory:\t%s\n", view.Board)
			fmt.Fprintf(w, "  DMA:\t%s\n", view.DMA)
			fmt.Fprintf(w, "  Firmware:\t%s\n", view.Firmware)
			fmt.Fprintf(w, "  Channel:\t%s\n", view.Channel)
			fmt.Fprintf(w, "  DDR:\t%d MiB\n", driver.DDRSize>>20)
			if m := view.Metadata; m != nil {
				fmt.Fprintf(w, "Gateware:\t\n")
				fmt.Fprintf(w, "  Vendor:\t%s\n", m.Vendor)
				fmt.Fprintf(w, "  Device:\t%s\n", m.Device)
				fmt.Fprintf(w, "  Version:\t%s\n", m.Version)
				fmt.Fprintf(w, "  Capabilities:\t%s\n", m.Capabilities)
			} else {
				fmt.Fprintf(w, "Gateware:\tno metadata\n")
			}
			return w.Flush()
		},
	}
}

// channelState reports whether the DMA channel can be leased by briefly
// acquiring and releasing it. Only a failed release is returned as an
// error; acquisition failures are folded into the state.
func channelState(dev *device.Device, opts []dma.Option) (string, error) {
	lease, err := dma.Acquire(dev, opts...)
	switch {
	case err == nil:
		return "available", lease.Release()
	case errors.Is(err, driver.ErrChannelBusy), errors.Is(err, dma.ErrBoardProgramming):
		return "busy", nil
	default:
		return "unavailable", nil
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			goVersion := GoVersion
			if goVersion == "unknown" {
				goVersion = runtime.Version()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "specdma version %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}
