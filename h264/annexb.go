// Package h264 contains the minimal Annex-B bitstream handling the
// command-line tooling needs: NALU iteration and access-unit splitting.
// It is not a parser; slice headers are only peeked at far enough to
// find picture boundaries.
package h264

import (
	"bytes"
	"fmt"
)

var naluStartCode = []byte{0x0, 0x0, 0x1}

// NALU type codes (ISO 14496-10, table 7-1).
const (
	NaluTypeSlice    uint8 = 1
	NaluTypeDpa      uint8 = 2
	NaluTypeDpb      uint8 = 3
	NaluTypeDpc      uint8 = 4
	NaluTypeIdrSlice uint8 = 5
	NaluTypeSei      uint8 = 6
	NaluTypeSps      uint8 = 7
	NaluTypePps      uint8 = 8
	NaluTypeAud      uint8 = 9
)

// NaluType returns the type code of a NALU (without the start code).
func NaluType(nalu []byte) uint8 {
	return nalu[0] & 0x1f
}

// IsVcl reports whether the NALU carries picture slice data.
func IsVcl(t uint8) bool {
	return t >= NaluTypeSlice && t <= NaluTypeIdrSlice
}

// IterateNaluAnnexb walks the NALUs of an Annex-B stream, calling fn
// with each NALU (start code stripped). Both 3- and 4-byte start codes
// are accepted.
func IterateNaluAnnexb(data []byte, fn func(nalu []byte)) error {
	i := bytes.Index(data, naluStartCode)
	if i < 0 {
		return fmt.Errorf("no start code found in %d bytes", len(data))
	}
	for i >= 0 {
		start := i + len(naluStartCode)
		next := bytes.Index(data[start:], naluStartCode)
		if next < 0 {
			if start < len(data) {
				fn(data[start:])
			}
			return nil
		}
		end := start + next
		// A 4-byte start code shows up as a trailing zero of the
		// previous NALU; trim it.
		for end > start && data[end-1] == 0 {
			end--
		}
		if end > start {
			fn(data[start:end])
		}
		i = start + next
	}
	return nil
}

// firstMbInSliceIsZero reports whether the slice's first_mb_in_slice is
// zero, meaning the slice starts a new picture. first_mb_in_slice is the
// first ue(v) after the NALU header, and ue(v) == 0 iff its leading bit
// is set.
func firstMbInSliceIsZero(nalu []byte) bool {
	if len(nalu) < 2 {
		return false
	}
	return nalu[1]&0x80 != 0
}

// SplitAccessUnits splits an Annex-B stream into access units: one
// coded picture each, with its leading non-VCL NALUs (SPS/PPS/SEI/AUD)
// attached. Each returned access unit is a valid Annex-B chunk with
// 4-byte start codes.
func SplitAccessUnits(data []byte) ([][]byte, error) {
	var aus [][]byte
	var current []byte
	sawVcl := false

	flush := func() {
		if len(current) > 0 {
			aus = append(aus, current)
		}
		current = nil
		sawVcl = false
	}

	err := IterateNaluAnnexb(data, func(nalu []byte) {
		t := NaluType(nalu)
		newPicture := IsVcl(t) && firstMbInSliceIsZero(nalu)
		// A non-VCL NALU after slice data belongs to the next access
		// unit; so does a slice that starts a new picture.
		if sawVcl && (!IsVcl(t) || newPicture) {
			flush()
		}
		current = append(current, 0x0, 0x0, 0x0, 0x1)
		current = append(current, nalu...)
		if IsVcl(t) {
			sawVcl = true
		}
	})
	if err != nil {
		return nil, err
	}
	flush()
	return aus, nil
}
