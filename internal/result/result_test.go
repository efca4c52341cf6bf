package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	r := Success(42)

	assert.Equal(t, KindSuccess, r.Kind())
	assert.True(t, r.Succeeded())
	assert.Equal(t, 42, r.Data())
	assert.NoError(t, r.Err())

	v, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFailure(t *testing.T) {
	cause := errors.New("boom")
	r := Failure[int](cause)

	assert.Equal(t, KindError, r.Kind())
	assert.False(t, r.Succeeded())
	assert.Same(t, cause, r.Err())

	_, err := r.Unwrap()
	assert.ErrorIs(t, err, cause)
}

func TestFailure_NilCause(t *testing.T) {
	r := Failure[string](nil)
	assert.Error(t, r.Err())
}

func TestLoading(t *testing.T) {
	r := Loading[[]string]()

	assert.Equal(t, KindLoading, r.Kind())
	assert.False(t, r.Succeeded())

	_, err := r.Unwrap()
	assert.ErrorIs(t, err, ErrLoading)

	var zero Result[int]
	assert.Equal(t, KindLoading, zero.Kind())
}

func TestMatch_CallsExactlyOneHandler(t *testing.T) {
	tests := []struct {
		name string
		r    Result[int]
		want string
	}{
		{"success", Success(1), "success"},
		{"error", Failure[int](errors.New("x")), "error"},
		{"loading", Loading[int](), "loading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			tt.r.Match(
				func(int) { calls = append(calls, "success") },
				func(error) { calls = append(calls, "error") },
				func() { calls = append(calls, "loading") },
			)
			assert.Equal(t, []string{tt.want}, calls)
		})
	}
}

func TestMatch_PanicsOnMissingHandler(t *testing.T) {
	assert.Panics(t, func() {
		Success(1).Match(func(int) {}, nil, func() {})
	})
}

func TestMap(t *testing.T) {
	double := func(v int) Result[int] { return Success(v * 2) }

	assert.Equal(t, 4, Map(Success(2), double).Data())

	cause := errors.New("x")
	mapped := Map(Failure[int](cause), double)
	assert.ErrorIs(t, mapped.Err(), cause)

	assert.Equal(t, KindLoading, Map(Loading[int](), double).Kind())
}

func TestString(t *testing.T) {
	assert.Equal(t, "Success[data=1]", Success(1).String())
	assert.Equal(t, "Error[exception=x]", Failure[int](errors.New("x")).String())
	assert.Equal(t, "Loading", Loading[int]().String())
}
