package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
)

// transferOptions returns the per-call options; an unset --segment keeps
// the configured default
func transferOptions(cmd *cobra.Command, segment int64) []dma.TransferOption {
	if cmd.Flags().Changed("segment") {
		return []dma.TransferOption{dma.SegmentSize(segment)}
	}
	return nil
}

func newReadCommand(a *app) *cobra.Command {
	var (
		offset  int64
		length  int64
		segment int64
		outPath string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read board DDR",
		Example: `  specdma read --offset 0x1000 --length 256
  specdma read --length 0x100000 --out ddr.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "hex" && format != "raw" {
				return fmt.Errorf("%w: unknown format %q", errUsage, format)
			}
			dev, err := a.device(nil)
			if err != nil {
				return err
			}

			var data []byte
			err = dma.WithLease(dev, func(e *dma.Engine) error {
				var err error
				data, err = e.Read(offset, length, transferOptions(cmd, segment)...)
				return err
			}, a.leaseOptions(cmd)...)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				return nil
			}
			if format == "raw" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			dumper := hex.Dumper(cmd.OutOrStdout())
			if _, err := dumper.Write(data); err != nil {
				return err
			}
			return dumper.Close()
		},
	}

	f := cmd.Flags()
	f.Int64Var(&offset, "offset", 0, "DDR offset in bytes (multiple of 4)")
	f.Int64Var(&length, "length", 0, "Number of bytes to read (multiple of 4)")
	f.Int64Var(&segment, "segment", 0, "Segment size in bytes (0: transport limit)")
	f.StringVar(&outPath, "out", "", "Write the data to a file instead of stdout")
	f.StringVar(&format, "format", "hex", "Stdout format: hex, raw")
	cmd.MarkFlagRequired("length")
	return cmd
}

func newWriteCommand(a *app) *cobra.Command {
	var (
		offset  int64
		segment int64
		inPath  string
		pattern int
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write board DDR",
		Example: `  specdma write --offset 0x1000 --in payload.bin
  specdma write --pattern 4096`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			switch {
			case inPath != "" && pattern > 0:
				return fmt.Errorf("%w: --in and --pattern are exclusive", errUsage)
			case inPath != "":
				var err error
				if data, err = os.ReadFile(inPath); err != nil {
					return fmt.Errorf("failed to read %s: %w", inPath, err)
				}
			case pattern > 0:
				data = makePattern(pattern)
			default:
				return fmt.Errorf("%w: one of --in or --pattern is required", errUsage)
			}

			dev, err := a.device(nil)
			if err != nil {
				return err
			}

			var n int
			err = dma.WithLease(dev, func(e *dma.Engine) error {
				var err error
				n, err = e.Write(offset, data, transferOptions(cmd, segment)...)
				return err
			}, a.leaseOptions(cmd)...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes at %#x\n", n, offset)
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&offset, "offset", 0, "DDR offset in bytes (multiple of 4)")
	f.Int64Var(&segment, "segment", 0, "Segment size in bytes (0: transport limit)")
	f.StringVar(&inPath, "in", "", "File whose content is written")
	f.IntVar(&pattern, "pattern", 0, "Write this many bytes of an incrementing byte pattern")
	return cmd
}

func newVerifyCommand(a *app) *cobra.Command {
	var (
		offset int64
		size   int64
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Round-trip self test of the DMA channel",
		Long: `verify writes a pseudo-random buffer into DDR, reads it back in a
single request and again in segments of several sizes, and compares
every read with what was written. It overwrites the DDR range it tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				return fmt.Errorf("%w: --size must be positive", errUsage)
			}
			if err := dma.Validate(driver.OpWrite, offset, size); err != nil {
				return err
			}
			dev, err := a.device(nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			data := make([]byte, size)
			rand.New(rand.NewSource(seed)).Read(data)

			return dma.WithLease(dev, func(e *dma.Engine) error {
				start := time.Now()
				if _, err := e.Write(offset, data); err != nil {
					return err
				}
				fmt.Fprintf(out, "write %d bytes at %#x: %s\n", size, offset, rate(size, time.Since(start)))

				start = time.Now()
				got, err := e.Read(offset, size)
				if err != nil {
					return err
				}
				if err := compare(data, got, offset); err != nil {
					return err
				}
				fmt.Fprintf(out, "read  %d bytes at %#x: %s\n", size, offset, rate(size, time.Since(start)))

				for _, seg := range []int64{4096, 64 << 10, 1 << 20} {
					if seg >= size {
						break
					}
					got, err := e.Read(offset, size, dma.SegmentSize(seg))
					if err != nil {
						return err
					}
					if err := compare(data, got, offset); err != nil {
						return fmt.Errorf("segments of %d bytes: %w", seg, err)
					}
					fmt.Fprintf(out, "read  in segments of %d: ok\n", seg)
				}

				fmt.Fprintln(out, okFmt("verify passed"))
				return nil
			}, a.leaseOptions(cmd)...)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&offset, "offset", 0, "DDR offset of the test range")
	f.Int64Var(&size, "size", 1<<20, "Size of the test range in bytes")
	f.Int64Var(&seed, "seed", 1, "Seed of the test data")
	return cmd
}

// compare reports the first differing DDR address
func compare(want, got []byte, offset int64) error {
	if bytes.Equal(want, got) {
		return nil
	}
	for i := range want {
		if i >= len(got) || want[i] != got[i] {
			return fmt.Errorf("%w: first difference at %#x", errMismatch, offset+int64(i))
		}
	}
	return fmt.Errorf("%w: got %d extra bytes", errMismatch, len(got)-len(want))
}

func rate(n int64, d time.Duration) string {
	if d <= 0 {
		return d.String()
	}
	return fmt.Sprintf("%s (%.1f MiB/s)", d.Round(time.Microsecond), float64(n)/d.Seconds()/(1<<20))
}

func makePattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}
