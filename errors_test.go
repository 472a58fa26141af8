package moderation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"precondition", ErrMissingMember, ClassPrecondition},
		{"wrapped precondition", fmt.Errorf("%w: %q", ErrUnknownFeature, "x"), ClassPrecondition},
		{"policy", ErrAlreadyMuted, ClassPolicy},
		{"side effect", sideEffect("kick member", errors.New("403")), ClassSideEffect},
		{"joined", errors.Join(errors.New("disk"), ErrNoMute), ClassPolicy},
		{"plain", errors.New("disk full"), ClassUnknown},
		{"nil", nil, ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassOf(tt.err))
		})
	}
}

func TestSideEffect(t *testing.T) {
	assert.NoError(t, sideEffect("noop", nil))

	cause := errors.New("403 forbidden")
	err := sideEffect("grant mute role", cause)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "grant mute role: 403 forbidden")
}
