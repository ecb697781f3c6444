// Package codec implements the media transcoding kernels a channel's I/O
// pipeline runs when its native hardware format does not match the
// format requested by the application (spec §4.6). Each exported
// function mirrors one of the original core's zio_* pairs: slin (16-bit
// linear PCM, host byte order) to/from G.711 u-law and A-law, and the
// direct u-law/A-law cross conversions used when a span's native codec
// differs from the peer span's without an intermediate linear hop.
package codec

// Codec identifies a channel's native or requested media encoding.
type Codec int

const (
	SLIN Codec = iota
	ULAw
	ALaw
)

func (c Codec) String() string {
	switch c {
	case SLIN:
		return "SLIN"
	case ULAw:
		return "ULAW"
	case ALaw:
		return "ALAW"
	default:
		return "UNKNOWN"
	}
}

// Func transcodes src in place semantics: it returns a newly allocated
// destination buffer, mirroring the original's in/out datalen pair
// without the fixed 512/1024-sample stack scratch buffers of the C
// implementation (Go backs these with normal slices).
type Func func(src []byte) []byte

// Lookup returns the transcoding function for the from->to pair, or nil
// if the pair requires no conversion (from == to) or is not supported.
func Lookup(from, to Codec) Func {
	switch {
	case from == to:
		return nil
	case from == SLIN && to == ULAw:
		return SLINToULaw
	case from == ULAw && to == SLIN:
		return ULawToSLIN
	case from == SLIN && to == ALaw:
		return SLINToALaw
	case from == ALaw && to == SLIN:
		return ALawToSLIN
	case from == ULAw && to == ALaw:
		return ULawToALaw
	case from == ALaw && to == ULAw:
		return ALawToULaw
	default:
		return nil
	}
}

// SLINToULaw converts 16-bit linear PCM samples (little-endian, 2 bytes
// per sample) to 8-bit u-law. The output is half the length of src,
// rounded down to a whole number of samples.
func SLINToULaw(src []byte) []byte {
	n := len(src) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(uint16(src[2*i]) | uint16(src[2*i+1])<<8)
		out[i] = linearToULaw(sample)
	}
	return out
}

// ULawToSLIN converts 8-bit u-law samples to 16-bit linear PCM
// (little-endian). The output is twice the length of src.
func ULawToSLIN(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		sample := uint16(ulawToLinear(b))
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

// SLINToALaw converts 16-bit linear PCM samples to 8-bit A-law.
func SLINToALaw(src []byte) []byte {
	n := len(src) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(uint16(src[2*i]) | uint16(src[2*i+1])<<8)
		out[i] = linearToALaw(sample)
	}
	return out
}

// ALawToSLIN converts 8-bit A-law samples to 16-bit linear PCM.
func ALawToSLIN(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		sample := uint16(alawToLinear(b))
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

// ULawToALaw performs the direct u-law to A-law byte conversion used
// when bridging two spans of differing native law without a linear
// hop (zio_ulaw2alaw).
func ULawToALaw(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = linearToALaw(ulawToLinear(b))
	}
	return out
}

// ALawToULaw performs the direct A-law to u-law byte conversion
// (zio_alaw2ulaw).
func ALawToULaw(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = linearToULaw(alawToLinear(b))
	}
	return out
}
