package driver

// DDR geometry - must match the SPEC gateware and the DMA driver
const (
	DDRSize  = 256 * 1024 * 1024 // 268435456 bytes
	DDRAlign = 4                 // offset and length granularity
)

// Debugfs layout exported by the spec and gn412x-dma drivers
const (
	DefaultDebugfsRoot   = "/sys/kernel/debug"
	PCIDomainPrefix      = "0000:"
	BoardDirPrefix       = "spec-"
	DMAFileName          = "dma"
	FirmwareFileName     = "fpga_firmware"
	MetadataFileName     = "fpga_device_metadata"
	FirmwareSearchPath   = "/sys/module/firmware_class/parameters/path"
	MaxFirmwarePathBytes = 256 // firmware_class path buffer, terminator included
)

// MaxRWCount is the largest count a single read(2)/write(2) moves on
// Linux (MAX_RW_COUNT). Larger requests come back short.
const MaxRWCount = 0x7ffff000

// IsAligned reports whether v is a multiple of DDRAlign.
func IsAligned(v int64) bool {
	return v%DDRAlign == 0
}
