// Package integration holds the tests that run against a real SPEC board.
//
// Hardware tests build with the integration tag and select the board
// with SPEC_PCI_ID:
//
//	SPEC_PCI_ID=06:00.0 go test -tags integration ./integration/
//
// Throughput benchmarks build with the benchmark tag.
package integration
