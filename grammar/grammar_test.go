package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringSimple(t *testing.T) {
	e, err := ParseString("test", "sin(x)+3*y^2")
	require.NoError(t, err)
	assert.Equal(t, "(sin(x) + (3 * (y ^ 2)))", e.ToAST().String())
}

func TestParseStringIf(t *testing.T) {
	e, err := ParseString("test", "if(x<0, -x, x)")
	require.NoError(t, err)
	assert.Equal(t, "if((x < 0), (-x), x)", e.ToAST().String())
}

func TestParseStringPrecedence(t *testing.T) {
	e, err := ParseString("test", "a+b*c-d/e")
	require.NoError(t, err)
	assert.Equal(t, "((a + (b * c)) - (d / e))", e.ToAST().String())
}

func TestParseStringLogical(t *testing.T) {
	e, err := ParseString("test", "a<b && !(c==d) || e")
	require.NoError(t, err)
	assert.Equal(t, "(((a < b) && (!((c == d)))) || e)", e.ToAST().String())
}

func TestParseStringError(t *testing.T) {
	_, err := ParseString("test", "x +")
	require.Error(t, err)
}
