package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindOfClassifiesSentinels(t *testing.T) {
	require.Equal(t, KindAuth, KindOf(ErrUnauthorized))
	require.Equal(t, KindBalance, KindOf(ErrInsufficientBalance))
	require.Equal(t, KindIssuer, KindOf(ErrReserveExceeded))
	require.Equal(t, KindNetting, KindOf(ErrConservationViolation))
	require.Equal(t, KindInfrastructure, KindOf(ErrCrypto))
}

func TestKindOfClassifiesTypedWrappers(t *testing.T) {
	require.Equal(t, KindCommitment, KindOf(NewDenied("attestation", "confidence too low")))
	require.Equal(t, KindValidation, KindOf(NewInvalidParameter("amount", "must be non-zero")))
	require.Equal(t, KindValidation, KindOf(NewMissingParameter("asset")))
	require.Equal(t, KindRate, KindOf(NewRateLimitExceeded(time.Second)))
	require.Equal(t, KindRate, KindOf(NewAccountLocked(time.Minute)))
	require.Equal(t, KindCommitment, KindOf(NewActionFailed(ErrInsufficientBalance)))
}

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("precheck: %w", ErrPermitExceeded)
	require.Equal(t, KindBalance, KindOf(wrapped))
}

func TestKindOfReturnsEmptyForNilOrUnknown(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, Kind(""), KindOf(errors.New("not part of the taxonomy")))
}
