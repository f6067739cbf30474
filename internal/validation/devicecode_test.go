package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

func newDeviceTest(t *testing.T, code *model.DeviceCode) (clk *clock.Fixed, codes *store.MemoryDeviceCodeStore, v *DeviceCodeValidator, handle string) {
	t.Helper()
	clk = testClock()
	codes = store.NewMemoryDeviceCodeStore(clk)
	v = NewDeviceCodeValidator(codes, store.NewMemoryThrottleCache(), store.AlwaysActiveProfileService{}, nil, clk, 5*time.Second)

	var err error
	handle, err = codes.Store(context.Background(), code)
	require.NoError(t, err)
	return clk, codes, v, handle
}

func pendingDeviceCode(now time.Time) *model.DeviceCode {
	return &model.DeviceCode{
		UserCode:        "BCDF2345",
		ClientID:        "device",
		RequestedScopes: []string{"openid", "api1"},
		IsOpenID:        true,
		CreationTime:    now,
		Lifetime:        300,
	}
}

func deviceClient() *model.Client {
	return &model.Client{
		ClientID:          "device",
		Enabled:           true,
		ProtocolType:      model.ProtocolOIDC,
		AllowedGrantTypes: []string{model.GrantDeviceCode},
		AllowedScopes:     []string{"openid", "api1"},
	}
}

func TestDeviceCodePollThrottling(t *testing.T) {
	clk, _, v, handle := newDeviceTest(t, pendingDeviceCode(testClock().Now()))
	client := deviceClient()

	// First poll passes the throttle and reports pending.
	result, err := v.Validate(context.Background(), client, handle)
	require.NoError(t, err)
	require.Equal(t, ErrAuthorizationPending, result.Error)

	// A second poll inside the interval is throttled.
	clk.Advance(2 * time.Second)
	result, err = v.Validate(context.Background(), client, handle)
	require.NoError(t, err)
	require.Equal(t, ErrSlowDown, result.Error)

	// The rejected poll did not refresh the window: 5s after the first
	// poll the device is allowed again.
	clk.Advance(3 * time.Second)
	result, err = v.Validate(context.Background(), client, handle)
	require.NoError(t, err)
	require.Equal(t, ErrAuthorizationPending, result.Error)
}

func TestDeviceCodeAuthorizedPollSucceedsAndRemovesCode(t *testing.T) {
	code := pendingDeviceCode(testClock().Now())
	code.SubjectID = "alice"
	code.IsAuthorized = true
	code.AuthorizedScopes = []string{"openid", "api1"}
	_, codes, v, handle := newDeviceTest(t, code)

	result, err := v.Validate(context.Background(), deviceClient(), handle)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "alice", result.DeviceCode.SubjectID)
	require.Equal(t, handle, result.Handle)

	_, err = codes.Get(context.Background(), handle)
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDeviceCodeDeniedWhenAuthorizedWithoutScopes(t *testing.T) {
	code := pendingDeviceCode(testClock().Now())
	code.SubjectID = "alice"
	code.IsAuthorized = true
	_, _, v, handle := newDeviceTest(t, code)

	result, err := v.Validate(context.Background(), deviceClient(), handle)
	require.NoError(t, err)
	require.Equal(t, ErrAccessDenied, result.Error)
}

func TestDeviceCodeExpired(t *testing.T) {
	clk, _, v, handle := newDeviceTest(t, pendingDeviceCode(testClock().Now()))

	clk.Advance(301 * time.Second)

	result, err := v.Validate(context.Background(), deviceClient(), handle)
	require.NoError(t, err)
	require.Equal(t, ErrExpiredToken, result.Error)
}

func TestDeviceCodeWrongClientRejected(t *testing.T) {
	_, _, v, handle := newDeviceTest(t, pendingDeviceCode(testClock().Now()))

	other := deviceClient()
	other.ClientID = "other"

	result, err := v.Validate(context.Background(), other, handle)
	require.NoError(t, err)
	require.Equal(t, ErrInvalidGrant, result.Error)
}
