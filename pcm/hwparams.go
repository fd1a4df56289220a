package pcm

// Access is the data layout an endpoint moves frames through.
type Access int

const (
	AccessMmapInterleaved Access = iota
	AccessMmapNonInterleaved
	AccessMmapComplex
	AccessRwInterleaved
	AccessRwNonInterleaved
)

func (a Access) String() string {
	switch a {
	case AccessMmapInterleaved:
		return "MMAP_INTERLEAVED"
	case AccessMmapNonInterleaved:
		return "MMAP_NONINTERLEAVED"
	case AccessMmapComplex:
		return "MMAP_COMPLEX"
	case AccessRwInterleaved:
		return "RW_INTERLEAVED"
	case AccessRwNonInterleaved:
		return "RW_NONINTERLEAVED"
	default:
		return "UNKNOWN"
	}
}

// intRange is a closed [Min, Max] integer constraint. Use OpenMin/OpenMax to
// exclude an endpoint, matching ALSA's "open" interval flags.
type intRange struct {
	Min, Max         int
	OpenMin, OpenMax bool
}

func fullRange() intRange { return intRange{Min: 0, Max: 1 << 30} }

func (r intRange) empty() bool {
	lo, hi := r.Min, r.Max
	if r.OpenMin {
		lo++
	}
	if r.OpenMax {
		hi--
	}
	return lo > hi
}

func (r intRange) intersect(o intRange) intRange {
	out := r
	if o.Min > out.Min || (o.Min == out.Min && o.OpenMin) {
		out.Min, out.OpenMin = o.Min, o.OpenMin
	}
	if o.Max < out.Max || (o.Max == out.Max && o.OpenMax) {
		out.Max, out.OpenMax = o.Max, o.OpenMax
	}
	return out
}

func (r intRange) low() int {
	if r.OpenMin {
		return r.Min + 1
	}
	return r.Min
}

func (r intRange) high() int {
	if r.OpenMax {
		return r.Max - 1
	}
	return r.Max
}

// mask is a bitset constraint over a small enumerable parameter (access,
// format, subformat).
type mask uint64

func fullMask(n int) mask {
	if n >= 64 {
		return ^mask(0)
	}
	return mask(1<<uint(n)) - 1
}

func (m mask) test(bit int) bool { return m&(1<<uint(bit)) != 0 }
func (m mask) only(bit int) mask { return mask(1 << uint(bit)) }
func (m mask) empty() bool       { return m == 0 }

func (m mask) intersect(o mask) mask { return m & o }

// lowestSet returns the lowest set bit index, or -1 if m is empty.
func (m mask) lowestSet() int {
	for i := 0; i < 64; i++ {
		if m.test(i) {
			return i
		}
	}
	return -1
}

// Param names the numeric/enumerable fields of a Space, used to key a
// "cannot satisfy" error to the offending parameter.
type Param int

const (
	ParamAccess Param = iota
	ParamFormat
	ParamSubformat
	ParamChannels
	ParamRate
	ParamPeriodSize
	ParamBufferSize
	ParamPeriodTime
	ParamTickTime
)

func (p Param) String() string {
	switch p {
	case ParamAccess:
		return "access"
	case ParamFormat:
		return "format"
	case ParamSubformat:
		return "subformat"
	case ParamChannels:
		return "channels"
	case ParamRate:
		return "rate"
	case ParamPeriodSize:
		return "period_size"
	case ParamBufferSize:
		return "buffer_size"
	case ParamPeriodTime:
		return "period_time"
	case ParamTickTime:
		return "tick_time"
	default:
		return "unknown"
	}
}

// Space is a hardware-parameter constraint space: a conjunction of
// per-parameter ranges and masks. It is refinable — intersecting it with a
// sub-constraint either shrinks it or makes it Empty — and refinement is
// monotone: Space never grows.
type Space struct {
	AccessMask    mask
	FormatMask    mask
	SubformatMask mask
	Channels      intRange
	Rate          intRange
	PeriodSize    intRange
	BufferSize    intRange
	PeriodTime    intRange
	TickTime      intRange
}

// Any returns the unconstrained space: every access, every known format, any
// channel count or rate up to generous ceilings.
func Any() Space {
	return Space{
		AccessMask:    fullMask(5),
		FormatMask:    fullMask(int(FormatU4) + 1),
		SubformatMask: fullMask(1),
		Channels:      intRange{Min: 1, Max: 256},
		Rate:          intRange{Min: 1, Max: 768000},
		PeriodSize:    intRange{Min: 1, Max: 1 << 16},
		BufferSize:    intRange{Min: 1, Max: 1 << 16},
		// PeriodTime is in microseconds, with a floor of 1000us (1ms);
		// periodSizeFromTime never returns less than one frame, so an
		// unconstrained space does not resolve to a zero-frame period even at
		// the lowest rates.
		PeriodTime: intRange{Min: 1000, Max: 1 << 20},
		TickTime:   intRange{Min: 0, Max: 1 << 20},
	}
}

// empty reports whether the space has no satisfying configuration left.
func (s Space) empty() bool {
	return s.AccessMask.empty() || s.FormatMask.empty() || s.SubformatMask.empty() ||
		s.Channels.empty() || s.Rate.empty() || s.PeriodSize.empty() ||
		s.BufferSize.empty() || s.PeriodTime.empty() || s.TickTime.empty()
}

// Refine intersects space with request and returns the narrowed space.
// Refinement is monotone: refine(refine(S,R1),R2) == refine(S, R1 ∧ R2),
// since intersection of closed ranges and bitsets is associative and
// commutative.
func Refine(space Space, request Space) (Space, error) {
	out := Space{
		AccessMask:    space.AccessMask.intersect(request.AccessMask),
		FormatMask:    space.FormatMask.intersect(request.FormatMask),
		SubformatMask: space.SubformatMask.intersect(request.SubformatMask),
		Channels:      space.Channels.intersect(request.Channels),
		Rate:          space.Rate.intersect(request.Rate),
		PeriodSize:    space.PeriodSize.intersect(request.PeriodSize),
		BufferSize:    space.BufferSize.intersect(request.BufferSize),
		PeriodTime:    space.PeriodTime.intersect(request.PeriodTime),
		TickTime:      space.TickTime.intersect(request.TickTime),
	}
	if out.empty() {
		return out, newErr("hw_refine", KindUnreachable)
	}
	return out, nil
}

// SetAccess narrows space to a single access mode.
func SetAccess(space Space, a Access) Space {
	space.AccessMask = space.AccessMask.only(int(a))
	return space
}

// SetFormat narrows space to a single format.
func SetFormat(space Space, f Format) Space {
	space.FormatMask = space.FormatMask.only(int(f))
	return space
}

// SetChannels narrows space to an exact channel count.
func SetChannels(space Space, n int) Space {
	space.Channels = intRange{Min: n, Max: n}
	return space
}

// SetRate narrows space to an exact rate.
func SetRate(space Space, hz int) Space {
	space.Rate = intRange{Min: hz, Max: hz}
	return space
}

// Config is the concrete, fully resolved configuration HwParams produces.
type Config struct {
	Access     Access
	Format     Format
	Subformat  int
	Channels   int
	Rate       int
	PeriodSize int
	BufferSize int
	PeriodTime int
	TickTime   int
}

// ChooseOne finalizes space into a single Config following a fixed
// resolution order: access, format, subformat, min channels, min rate, min
// period-time, max buffer-size, min tick-time. Each step narrows the
// remaining space to the chosen value before moving to the next; a step
// that finds nothing to choose fails with Unreachable keyed to that
// parameter.
func ChooseOne(space Space) (Config, Space, error) {
	var cfg Config

	access, ok := firstAccess(space.AccessMask)
	if !ok {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamAccess.String())
	}
	space = SetAccess(space, access)
	cfg.Access = access

	format, ok := firstFormat(space.FormatMask)
	if !ok {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamFormat.String())
	}
	space = SetFormat(space, format)
	cfg.Format = format

	sub := space.SubformatMask.lowestSet()
	if sub < 0 {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamSubformat.String())
	}
	space.SubformatMask = space.SubformatMask.only(sub)
	cfg.Subformat = sub

	if space.Channels.empty() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamChannels.String())
	}
	cfg.Channels = space.Channels.low()
	space.Channels = intRange{Min: cfg.Channels, Max: cfg.Channels}

	if space.Rate.empty() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamRate.String())
	}
	cfg.Rate = space.Rate.low()
	space.Rate = intRange{Min: cfg.Rate, Max: cfg.Rate}

	if space.PeriodTime.empty() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamPeriodTime.String())
	}
	cfg.PeriodTime = space.PeriodTime.low()
	space.PeriodTime = intRange{Min: cfg.PeriodTime, Max: cfg.PeriodTime}
	cfg.PeriodSize = periodSizeFromTime(cfg.PeriodTime, cfg.Rate)
	if space.PeriodSize.empty() || cfg.PeriodSize < space.PeriodSize.low() || cfg.PeriodSize > space.PeriodSize.high() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamPeriodSize.String())
	}

	if space.BufferSize.empty() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamBufferSize.String())
	}
	cfg.BufferSize = roundBufferSize(space.BufferSize.high(), cfg.PeriodSize)
	if cfg.BufferSize < cfg.PeriodSize {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamBufferSize.String())
	}

	if space.TickTime.empty() {
		return cfg, space, newErrParam("hw_params", KindUnreachable, ParamTickTime.String())
	}
	cfg.TickTime = space.TickTime.low()

	return cfg, space, nil
}

// periodSizeFromTime converts a period time in microseconds to frames at
// the given rate, rounding to the nearest frame and never below one frame.
func periodSizeFromTime(periodTimeUs, rate int) int {
	n := (periodTimeUs*rate + 500000) / 1000000
	if n < 1 {
		n = 1
	}
	return n
}

// roundBufferSize rounds down to the nearest whole multiple of periodSize,
// matching the invariant that period_size divides buffer_size.
func roundBufferSize(max, periodSize int) int {
	if periodSize <= 0 {
		return 0
	}
	periods := max / periodSize
	if periods < 1 {
		periods = 1
	}
	return periods * periodSize
}

func firstAccess(m mask) (Access, bool) {
	bit := m.lowestSet()
	if bit < 0 {
		return 0, false
	}
	return Access(bit), true
}

// formatOrder is the preference order formats are chosen in when more than
// one remains after refinement: prefer the common, byte-aligned, native
// formats first.
var formatOrder = []Format{
	FormatS16LE, FormatS16BE, FormatS32LE, FormatS32BE,
	FormatS8, FormatU8, FormatFloatLE, FormatFloat64LE,
}

func firstFormat(m mask) (Format, bool) {
	for _, f := range formatOrder {
		if m.test(int(f)) {
			return f, true
		}
	}
	// Fall back to whatever numerically-lowest bit remains, for formats
	// not covered by the preference list above.
	bit := m.lowestSet()
	if bit < 0 {
		return 0, false
	}
	return Format(bit), true
}

// Test reports whether a single value is still admissible for a parameter
// in space, without mutating it.
func Test(space Space, p Param, value int) bool {
	switch p {
	case ParamAccess:
		return space.AccessMask.test(value)
	case ParamFormat:
		return space.FormatMask.test(value)
	case ParamSubformat:
		return space.SubformatMask.test(value)
	case ParamChannels:
		return value >= space.Channels.low() && value <= space.Channels.high()
	case ParamRate:
		return value >= space.Rate.low() && value <= space.Rate.high()
	case ParamPeriodSize:
		return value >= space.PeriodSize.low() && value <= space.PeriodSize.high()
	case ParamBufferSize:
		return value >= space.BufferSize.low() && value <= space.BufferSize.high()
	case ParamPeriodTime:
		return value >= space.PeriodTime.low() && value <= space.PeriodTime.high()
	case ParamTickTime:
		return value >= space.TickTime.low() && value <= space.TickTime.high()
	default:
		return false
	}
}

// GetMin returns the current lower bound of a numeric parameter.
func GetMin(space Space, p Param) int {
	switch p {
	case ParamChannels:
		return space.Channels.low()
	case ParamRate:
		return space.Rate.low()
	case ParamPeriodSize:
		return space.PeriodSize.low()
	case ParamBufferSize:
		return space.BufferSize.low()
	case ParamPeriodTime:
		return space.PeriodTime.low()
	case ParamTickTime:
		return space.TickTime.low()
	default:
		return 0
	}
}

// GetMax returns the current upper bound of a numeric parameter.
func GetMax(space Space, p Param) int {
	switch p {
	case ParamChannels:
		return space.Channels.high()
	case ParamRate:
		return space.Rate.high()
	case ParamPeriodSize:
		return space.PeriodSize.high()
	case ParamBufferSize:
		return space.BufferSize.high()
	case ParamPeriodTime:
		return space.PeriodTime.high()
	case ParamTickTime:
		return space.TickTime.high()
	default:
		return 0
	}
}
