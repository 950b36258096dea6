package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	require.Equal(t, "failed: boom", err.Error())
	require.ErrorIs(t, err, internal)
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", ExitUsage)
	with := base.WithInternal(stdErrors.New("oops"))

	require.NotSame(t, base, with)
	require.Nil(t, base.Internal)
	require.NotNil(t, with.Internal)
}

func TestSentinelMatchesWrappedCopy(t *testing.T) {
	err := fmt.Errorf("warm: %w", ErrCacheUnavailable.WithInternal(stdErrors.New("dial tcp: refused")))

	require.ErrorIs(t, err, ErrCacheUnavailable)
	require.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, ExitOK, ExitCode(nil))
	require.Equal(t, ExitFailure, ExitCode(stdErrors.New("raw")))
	require.Equal(t, ExitFailure, ExitCode(ErrNotCommandLine))
	require.Equal(t, ExitUsage, ExitCode(InvalidOptions(stdErrors.New("ttl"))))
	require.Equal(t, ExitPartialWrite, ExitCode(fmt.Errorf("run: %w", ErrPartialWrite)))
}
