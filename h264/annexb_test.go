package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// nalu builds one NALU with the given type and payload bytes.
func nalu(t uint8, payload ...byte) []byte {
	return append([]byte{t & 0x1f}, payload...)
}

func annexb(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0x0, 0x0, 0x0, 0x1)
		out = append(out, n...)
	}
	return out
}

func TestIterateNaluAnnexb(t *testing.T) {
	t.Parallel()

	var got [][]byte
	err := IterateNaluAnnexb(
		annexb(
			nalu(NaluTypeSps, 0x42),
			nalu(NaluTypePps, 0x23),
			nalu(NaluTypeIdrSlice, 0x80, 0x10),
		),
		func(n []byte) {
			got = append(got, append([]byte(nil), n...))
		},
	)
	require.NoError(t, err)
	require.Equal(t, [][]byte{
		nalu(NaluTypeSps, 0x42),
		nalu(NaluTypePps, 0x23),
		nalu(NaluTypeIdrSlice, 0x80, 0x10),
	}, got)
}

func TestIterateNaluAnnexbThreeByteStartCode(t *testing.T) {
	t.Parallel()

	data := []byte{0x0, 0x0, 0x1}
	data = append(data, nalu(NaluTypeSei, 0x5)...)
	data = append(data, 0x0, 0x0, 0x1)
	data = append(data, nalu(NaluTypeSlice, 0x80)...)

	var types []uint8
	err := IterateNaluAnnexb(data, func(n []byte) {
		types = append(types, NaluType(n))
	})
	require.NoError(t, err)
	require.Equal(t, []uint8{NaluTypeSei, NaluTypeSlice}, types)
}

func TestIterateNaluAnnexbNoStartCode(t *testing.T) {
	t.Parallel()

	require.Error(t, IterateNaluAnnexb([]byte{0x42, 0x23}, func([]byte) {}))
}

func TestSplitAccessUnits(t *testing.T) {
	t.Parallel()

	sps := nalu(NaluTypeSps, 0x42)
	pps := nalu(NaluTypePps, 0x23)
	idr := nalu(NaluTypeIdrSlice, 0x80, 0x10)    // first_mb_in_slice == 0
	sliceA := nalu(NaluTypeSlice, 0x80, 0x20)    // starts a picture
	sliceCont := nalu(NaluTypeSlice, 0x40, 0x20) // continues a picture
	sei := nalu(NaluTypeSei, 0x5)

	tests := []struct {
		name  string
		input []byte
		want  [][]byte
	}{
		{
			name:  "idr with parameter sets plus one slice",
			input: annexb(sps, pps, idr, sliceA),
			want: [][]byte{
				annexb(sps, pps, idr),
				annexb(sliceA),
			},
		},
		{
			name:  "multi-slice picture stays one access unit",
			input: annexb(idr, sliceCont, sliceA),
			want: [][]byte{
				annexb(idr, sliceCont),
				annexb(sliceA),
			},
		},
		{
			name:  "sei after slice data goes to the next access unit",
			input: annexb(sliceA, sei, sliceA),
			want: [][]byte{
				annexb(sliceA),
				annexb(sei, sliceA),
			},
		},
		{
			name:  "metadata only",
			input: annexb(sps, pps),
			want: [][]byte{
				annexb(sps, pps),
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SplitAccessUnits(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
