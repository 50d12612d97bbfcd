package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackTypedPushPop(t *testing.T) {
	s := NewStack(false)
	s.PushI32(1)
	s.PushI64(2)
	s.PushF32(3.5)
	s.PushF64(4.5)

	f64, err := s.PopF64()
	require.NoError(t, err)
	require.Equal(t, 4.5, f64)

	f32, err := s.PopF32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	i64, err := s.PopI64()
	require.NoError(t, err)
	require.Equal(t, int64(2), i64)

	i32, err := s.PopI32()
	require.NoError(t, err)
	require.Equal(t, int32(1), i32)

	require.Equal(t, 0, s.Len())
}

func TestStackUnderflow(t *testing.T) {
	s := NewStack(false)
	_, err := s.PopI32()
	require.ErrorIs(t, err, ErrStackUnderflow)
}

func TestStackDropWithDebugSidecar(t *testing.T) {
	s := NewStack(true)
	s.PushI64(42)
	require.Equal(t, 8, s.Len())
	require.NoError(t, s.Drop())
	require.Equal(t, 0, s.Len())
}

func TestStackDropWithoutDebugSidecarAssumesI32(t *testing.T) {
	s := NewStack(false)
	s.PushI32(7)
	require.NoError(t, s.Drop())
	require.Equal(t, 0, s.Len())
}

func TestStackSelect(t *testing.T) {
	s := NewStack(true)
	s.PushI32(10) // a
	s.PushI32(20) // b
	s.PushI32(1)  // cond != 0 -> picks a
	require.NoError(t, s.Select())
	v, err := s.PopI32()
	require.NoError(t, err)
	require.Equal(t, int32(10), v)

	s.PushI32(10)
	s.PushI32(20)
	s.PushI32(0) // cond == 0 -> picks b
	require.NoError(t, s.Select())
	v, err = s.PopI32()
	require.NoError(t, err)
	require.Equal(t, int32(20), v)
}

func TestStackReset(t *testing.T) {
	s := NewStack(true)
	s.PushI32(1)
	s.PushI64(2)
	s.Reset()
	require.Equal(t, 0, s.Len())
	_, err := s.PopI32()
	require.ErrorIs(t, err, ErrStackUnderflow)
}
