package driver

import (
	"testing"
)

func TestDDRConstants(t *testing.T) {
	tests := []struct {
		name     string
		got      int
		expected int
	}{
		{"DDRSize", DDRSize, 268435456},
		{"DDRAlign", DDRAlign, 4},
		{"MaxRWCount", MaxRWCount, 2147479552},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, tt.got)
			}
		})
	}
}

func TestDebugfsNames(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"DefaultDebugfsRoot", DefaultDebugfsRoot, "/sys/kernel/debug"},
		{"PCIDomainPrefix", PCIDomainPrefix, "0000:"},
		{"BoardDirPrefix", BoardDirPrefix, "spec-"},
		{"DMAFileName", DMAFileName, "dma"},
		{"FirmwareFileName", FirmwareFileName, "fpga_firmware"},
		{"MetadataFileName", MetadataFileName, "fpga_device_metadata"},
		{"FirmwareSearchPath", FirmwareSearchPath, "/sys/module/firmware_class/parameters/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

func TestIsAligned(t *testing.T) {
	tests := []struct {
		v        int64
		expected bool
	}{
		{0, true},
		{4, true},
		{DDRSize, true},
		{1, false},
		{2, false},
		{3, false},
		{6, false},
	}

	for _, tt := range tests {
		if got := IsAligned(tt.v); got != tt.expected {
			t.Errorf("IsAligned(%d) = %v, expected %v", tt.v, got, tt.expected)
		}
	}
}
