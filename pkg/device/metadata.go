package device

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata fields published by the FPGA gateware and dumped by the
// driver in fpga_device_metadata
const (
	MetaVendorIDCERN   = 0x000010dc
	MetaDeviceIDSPEC   = 0x53504543 // "SPEC"
	MetaBOMLittleEnd   = 0xfffe0000
	MetaBOMEndMask     = 0xffff0000
	MetaBOMVersionMask = 0x0000ffff
)

// Metadata describes the gateware currently loaded in the FPGA
type Metadata struct {
	Vendor       uint32   `yaml:"vendor"`
	Device       uint32   `yaml:"device"`
	Version      uint32   `yaml:"version"`
	BOM          uint32   `yaml:"bom"`
	SourceID     [16]byte `yaml:"-"`
	Capabilities uint32   `yaml:"capabilities"`
	VendorUUID   [16]byte `yaml:"-"`
}

// VersionString returns the gateware version as major.minor
func (m *Metadata) VersionString() string {
	return fmt.Sprintf("%d.%d", m.Version>>24, (m.Version>>16)&0xff)
}

// IsLittleEndian reports whether the BOM marks little-endian registers
func (m *Metadata) IsLittleEndian() bool {
	return m.BOM&MetaBOMEndMask == MetaBOMLittleEnd
}

// IsSPEC reports whether the gateware identifies as a CERN SPEC design
func (m *Metadata) IsSPEC() bool {
	return m.Vendor == MetaVendorIDCERN && m.Device == MetaDeviceIDSPEC
}

// metadataDoc mirrors the driver's seq_file output:
//
//	'spec-0000:06:00.0':
//	Metadata:
//	  - Vendor: 0x000010dc
//	  - Device: 0x53504543
type metadataDoc struct {
	Metadata []map[string]string `yaml:"Metadata"`
}

// Metadata reads the gateware metadata of the board
func (d *Device) Metadata() (*Metadata, error) {
	data, err := os.ReadFile(d.paths.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata decodes the content of an fpga_device_metadata file
func ParseMetadata(data []byte) (*Metadata, error) {
	var doc metadataDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if len(doc.Metadata) == 0 {
		return nil, fmt.Errorf("%w: no Metadata section", ErrInvalidMetadata)
	}

	fields := make(map[string]string)
	for _, item := range doc.Metadata {
		for k, v := range item {
			fields[k] = v
		}
	}

	var m Metadata
	words := []struct {
		key string
		dst *uint32
	}{
		{"Vendor", &m.Vendor},
		{"Device", &m.Device},
		{"Version", &m.Version},
		{"BOM", &m.BOM},
		{"CapabilityMask", &m.Capabilities},
	}
	for _, w := range words {
		v, ok := fields[w.key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidMetadata, w.key)
		}
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMetadata, w.key, err)
		}
		*w.dst = uint32(n)
	}

	ids := []struct {
		key string
		dst *[16]byte
	}{
		{"SourceID", &m.SourceID},
		{"VendorUUID", &m.VendorUUID},
	}
	for _, id := range ids {
		v, ok := fields[id.key]
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
		if err != nil || len(raw) != len(id.dst) {
			return nil, fmt.Errorf("%w: %s: malformed 128-bit value %q", ErrInvalidMetadata, id.key, v)
		}
		copy(id.dst[:], raw)
	}

	return &m, nil
}
