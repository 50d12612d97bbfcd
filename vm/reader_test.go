package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderLEBUnsigned(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"single byte", []byte{0x00}, 0},
		{"single byte max", []byte{0x7f}, 127},
		{"three bytes", []byte{0xe5, 0x8e, 0x26}, 624485},
		{"large", uleb(1 << 40), 1 << 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.in)
			got, err := r.ReadLEBUnsigned()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReaderLEBSigned(t *testing.T) {
	cases := []struct {
		name string
		in   int64
	}{
		{"zero", 0},
		{"small positive", 42},
		{"small negative", -42},
		{"boundary", -64},
		{"boundary plus one", -65},
		{"large negative", -624485},
		{"large positive", 624485},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := sleb(tc.in)
			r := NewReader(encoded)
			got, err := r.ReadLEBSigned()
			require.NoError(t, err)
			require.Equal(t, tc.in, got)
		})
	}
}

func TestReaderName(t *testing.T) {
	r := NewReader(nameBytes("entry"))
	name, err := r.ReadName()
	require.NoError(t, err)
	require.Equal(t, "entry", name)
}

func TestReaderEndOfStream(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadSlice(4)
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestReaderSliceSinceAndSkipTo(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	mark := r.Mark()
	_, err := r.ReadSlice(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, r.SliceSince(mark))

	r.SkipTo(0)
	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), b)
}
