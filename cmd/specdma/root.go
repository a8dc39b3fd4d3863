package main

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/ohwr/spec-dma/pkg/config"
	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
)

// app holds the global flags and the configuration they resolve to
type app struct {
	configPath  string
	pciID       string
	debugfsRoot string
	verbose     bool
	output      string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "specdma",
		Short: "DMA client for the CERN SPEC board",
		Long: `specdma reads and writes the DDR memory of a CERN SPEC FPGA board
through the DMA channel exported by the SPEC driver in debugfs.

The DMA channel admits a single user at a time. Offsets and lengths
must be multiples of 4 and stay within the 256 MiB DDR.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file (default: $SPECDMA_CONFIG or ~/.config/specdma/config.yaml)")
	f.StringVar(&a.pciID, "pci-id", "", "PCI identifier of the board, e.g. 06:00.0 (default: first board found)")
	f.StringVar(&a.debugfsRoot, "debugfs", "", "debugfs mount point (default: /sys/kernel/debug)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Log channel and firmware activity to stderr")
	f.StringVarP(&a.output, "output", "o", "table", "Output format: table, json, yaml")

	cmd.AddCommand(
		newScanCommand(a),
		newInfoCommand(a),
		newReadCommand(a),
		newWriteCommand(a),
		newVerifyCommand(a),
		newProgramCommand(a),
		newVersionCommand(),
	)
	return cmd
}

// load reads the configuration once and applies flag overrides
func (a *app) load() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.pciID != "" {
		cfg.PCIID = a.pciID
	}
	if a.debugfsRoot != "" {
		cfg.DebugfsRoot = a.debugfsRoot
	}
	if a.verbose {
		cfg.Verbose = true
	}
	a.cfg = cfg
	return cfg, nil
}

// device selects the board named by args, the flags or the config, and
// falls back to the first board found
func (a *app) device(args []string) (*device.Device, error) {
	cfg, err := a.load()
	if err != nil {
		return nil, err
	}

	id := cfg.PCIID
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		boards, err := device.NewScannerAt(cfg.DebugfsRoot).Scan()
		if err != nil {
			return nil, err
		}
		if len(boards) == 0 {
			return nil, device.ErrNoDevices
		}
		id = boards[0].ID
	}
	return device.NewWithLocator(device.Locator{DebugfsRoot: cfg.DebugfsRoot}, id)
}

func (a *app) logger(cmd *cobra.Command) *log.Logger {
	if a.cfg == nil || !a.cfg.Verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func (a *app) leaseOptions(cmd *cobra.Command) []dma.Option {
	return []dma.Option{
		dma.WithLogger(a.logger(cmd)),
		dma.WithSegmentSize(a.cfg.SegmentSize),
	}
}
