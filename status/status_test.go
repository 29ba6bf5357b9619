package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	table := []struct {
		err  error
		code Code
	}{
		{nil, OK},
		{Errorf(InvalidArgument, "Bad length %d.", 3), InvalidArgument},
		{Errorf(NotFound, "No material %d.", 7), NotFound},
		{fmt.Errorf("wrapped: %w", Errorf(InvalidState, "Sealed.")), InvalidState},
		{errors.New("foreign"), Unknown},
	}

	for i, line := range table {
		if code := CodeOf(line.err); code != line.code {
			t.Errorf("%d) Expected code %s, got %s.", i, line.code, code)
		}
	}
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("loading: %w", Errorf(NumericFailure, "NaN in region 4."))
	assert.True(t, errors.Is(err, ErrNumericFailure))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "loading: NaN in region 4.", err.Error())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "ConvergenceFailure", ConvergenceFailure.String())
	assert.Equal(t, "Code(42)", Code(42).String())
}
