package pcm

// Format identifies a sample encoding. The external string names of these
// are part of the dump-text contract (see introspect.go); the numeric values are
// not.
type Format int

const (
	FormatS8 Format = iota
	FormatU8
	FormatS16LE
	FormatS16BE
	FormatU16LE
	FormatU16BE
	FormatS24LE
	FormatS24BE
	FormatU24LE
	FormatU24BE
	FormatS32LE
	FormatS32BE
	FormatU32LE
	FormatU32BE
	FormatFloatLE
	FormatFloatBE
	FormatFloat64LE
	FormatFloat64BE
	FormatIEC958SubframeLE
	FormatIEC958SubframeBE
	FormatMuLaw
	FormatALaw
	FormatIMAADPCM
	FormatMPEG
	FormatGSM
	FormatSpecial
	// FormatU4 is a packed 4-bit format used only to exercise the
	// sub-byte area-copy/silence paths; it has no ALSA-contract name.
	FormatU4
)

type endian int

const (
	endianNone endian = iota
	endianLittle
	endianBig
)

type formatInfo struct {
	name     string
	width    int // physical width in bits: 4, 8, 16, 24(->32 container), 32, 64
	signed   bool
	endian   endian
	silence  uint64 // silence pattern replicated to 64 bits
}

// formatTable is the single source of truth for format metadata: width,
// signedness, endianness and silence pattern all derive from this array so
// they can't drift apart.
var formatTable = map[Format]formatInfo{
	FormatS8:               {"S8", 8, true, endianNone, 0x0000000000000000},
	FormatU8:                {"U8", 8, false, endianNone, 0x8080808080808080},
	FormatS16LE:             {"S16_LE", 16, true, endianLittle, 0x0000000000000000},
	FormatS16BE:             {"S16_BE", 16, true, endianBig, 0x0000000000000000},
	FormatU16LE:             {"U16_LE", 16, false, endianLittle, 0x8000800080008000},
	FormatU16BE:             {"U16_BE", 16, false, endianBig, 0x0080008000800080},
	FormatS24LE:             {"S24_LE", 32, true, endianLittle, 0x0000000000000000},
	FormatS24BE:             {"S24_BE", 32, true, endianBig, 0x0000000000000000},
	FormatU24LE:             {"U24_LE", 32, false, endianLittle, 0x0080000000800000},
	FormatU24BE:             {"U24_BE", 32, false, endianBig, 0x0000800000008000},
	FormatS32LE:             {"S32_LE", 32, true, endianLittle, 0x0000000000000000},
	FormatS32BE:             {"S32_BE", 32, true, endianBig, 0x0000000000000000},
	FormatU32LE:             {"U32_LE", 32, false, endianLittle, 0x8000000080000000},
	FormatU32BE:             {"U32_BE", 32, false, endianBig, 0x0000008000000080},
	FormatFloatLE:           {"FLOAT_LE", 32, true, endianLittle, 0x0000000000000000},
	FormatFloatBE:           {"FLOAT_BE", 32, true, endianBig, 0x0000000000000000},
	FormatFloat64LE:         {"FLOAT64_LE", 64, true, endianLittle, 0x0000000000000000},
	FormatFloat64BE:         {"FLOAT64_BE", 64, true, endianBig, 0x0000000000000000},
	FormatIEC958SubframeLE:  {"IEC958_SUBFRAME_LE", 32, false, endianLittle, 0x0000000000000000},
	FormatIEC958SubframeBE:  {"IEC958_SUBFRAME_BE", 32, false, endianBig, 0x0000000000000000},
	FormatMuLaw:             {"MU_LAW", 8, false, endianNone, 0x7f7f7f7f7f7f7f7f},
	FormatALaw:              {"A_LAW", 8, false, endianNone, 0x5555555555555555},
	FormatIMAADPCM:          {"IMA_ADPCM", 4, false, endianNone, 0x0000000000000000},
	FormatMPEG:              {"MPEG", 8, false, endianNone, 0x0000000000000000},
	FormatGSM:               {"GSM", 8, false, endianNone, 0x0000000000000000},
	FormatSpecial:           {"SPECIAL", 0, false, endianNone, 0x0000000000000000},
	FormatU4:                {"U4", 4, false, endianNone, 0x8888888888888888},
}

func (f Format) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// Width returns the physical sample width in bits.
func Width(f Format) int { return formatTable[f].width }

// Signed reports whether f is a signed encoding.
func Signed(f Format) bool { return formatTable[f].signed }

// LittleEndian reports whether f stores multi-byte samples little-endian.
// Single-byte and endian-less formats report false.
func LittleEndian(f Format) bool { return formatTable[f].endian == endianLittle }

// Silence64 returns the silence bit pattern for f, replicated across all 64 bits.
func Silence64(f Format) uint64 { return formatTable[f].silence }

// FrameBits returns the number of bits in one frame (all channels) of format f.
// The width is multiplied by channels for every format, packed sub-byte ones
// included; callers working with FormatU4/FormatIMAADPCM layouts that are not
// densely packed must reason about channel layout themselves via the area engine.
func FrameBits(f Format, channels int) int {
	return Width(f) * channels
}

// BytesToFrames converts a byte count to a frame count for the given frame
// geometry, truncating. Truncation happens silently when n is not a
// frame-aligned byte count; callers that need to detect misalignment should
// check n%FrameBits(f,channels)/8 themselves.
func BytesToFrames(n int, f Format, channels int) int {
	frameBits := FrameBits(f, channels)
	if frameBits == 0 {
		return 0
	}
	return n * 8 / frameBits
}

// FramesToBytes converts a frame count to a byte count, truncating when
// n*FrameBits is not a multiple of 8 (possible only for packed sub-byte formats).
func FramesToBytes(n int, f Format, channels int) int {
	return n * FrameBits(f, channels) / 8
}
