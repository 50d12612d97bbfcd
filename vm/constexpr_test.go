package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalConstExprLiterals(t *testing.T) {
	v, err := evalConstExpr(constExprI32(-5), nil)
	require.NoError(t, err)
	require.Equal(t, int32(-5), getI32(v))

	v, err = evalConstExpr(constExprI64(99), nil)
	require.NoError(t, err)
	require.Equal(t, int64(99), getI64(v))
}

func TestEvalConstExprGlobalGet(t *testing.T) {
	var earlier [8]byte
	putI32(&earlier, 123)
	expr := bytesCat(insGlobalGet(0), insEnd())

	v, err := evalConstExpr(expr, [][8]byte{earlier})
	require.NoError(t, err)
	require.Equal(t, int32(123), getI32(v))
}

func TestEvalConstExprGlobalGetOutOfRange(t *testing.T) {
	expr := bytesCat(insGlobalGet(5), insEnd())
	_, err := evalConstExpr(expr, nil)
	require.ErrorIs(t, err, ErrInvalidGlobalIndex)
}

func TestEvalConstExprRejectsNonConstOpcode(t *testing.T) {
	expr := bytesCat([]byte{byte(I32Add)}, insEnd())
	_, err := evalConstExpr(expr, nil)
	require.ErrorIs(t, err, ErrUnsupportedConstOpcode)
}

func TestEvalConstExprRequiresTrailingEnd(t *testing.T) {
	expr := insI32Const(1) // no End
	_, err := evalConstExpr(expr, nil)
	require.Error(t, err)
}

func TestEvalConstExprU32(t *testing.T) {
	off, err := evalConstExprU32(constExprI32(256), nil)
	require.NoError(t, err)
	require.Equal(t, uint32(256), off)
}
