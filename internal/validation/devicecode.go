package validation

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/events"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// DeviceCodeValidationResult is the outcome of one device-code poll.
type DeviceCodeValidationResult struct {
	DeviceCode *model.DeviceCode
	Handle     string

	IsError          bool
	Error            string
	ErrorDescription string
}

func deviceError(code string) *DeviceCodeValidationResult {
	return &DeviceCodeValidationResult{IsError: true, Error: code}
}

// DeviceCodeValidator implements the poll state machine for the device
// grant: pending, throttled, expired, denied or authorized. The code is
// removed from the store only on terminal success.
type DeviceCodeValidator struct {
	codes    store.DeviceCodeStore
	throttle store.ThrottleCache
	profile  store.ProfileService
	sink     events.Sink
	clk      clock.Clock

	// interval is the minimum time between polls per device code.
	interval time.Duration
}

func NewDeviceCodeValidator(codes store.DeviceCodeStore, throttle store.ThrottleCache, profile store.ProfileService, sink events.Sink, clk clock.Clock, interval time.Duration) *DeviceCodeValidator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &DeviceCodeValidator{
		codes:    codes,
		throttle: throttle,
		profile:  profile,
		sink:     sink,
		clk:      clk,
		interval: interval,
	}
}

// Validate processes one poll for the handle on behalf of the client.
func (v *DeviceCodeValidator) Validate(ctx context.Context, client *model.Client, handle string) (*DeviceCodeValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.device_code"), logger.ClientID(client.ClientID))

	code, err := v.codes.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("unknown device code")
			return deviceError(ErrInvalidGrant), nil
		}
		return nil, err
	}
	if code.ClientID != client.ClientID {
		log.Warn("device code presented by wrong client")
		return deviceError(ErrInvalidGrant), nil
	}

	now := v.clk.Now()

	throttled, err := v.shouldSlowDown(ctx, handle, code, now)
	if err != nil {
		return nil, err
	}
	v.raisePoll(ctx, code, !throttled)
	if throttled {
		log.Debug("device poll throttled")
		return deviceError(ErrSlowDown), nil
	}

	if code.IsExpired(now) {
		log.Debug("device code expired")
		return deviceError(ErrExpiredToken), nil
	}

	if code.IsAuthorized && len(code.AuthorizedScopes) == 0 {
		log.Debug("device authorization denied by user")
		return deviceError(ErrAccessDenied), nil
	}
	if !code.IsAuthorized {
		return deviceError(ErrAuthorizationPending), nil
	}

	active, err := v.profile.IsActive(ctx, code.SubjectID, client, model.GrantDeviceCode)
	if err != nil {
		return nil, err
	}
	if !active {
		log.Debug("device code subject no longer active", logger.SubjectID(code.SubjectID))
		return deviceError(ErrInvalidGrant), nil
	}

	if err := v.codes.Remove(ctx, handle); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &DeviceCodeValidationResult{DeviceCode: code, Handle: handle}, nil
}

// shouldSlowDown tracks the last poll instant per device code. The first
// poll always passes; later polls inside the interval are rejected
// without refreshing the timestamp.
func (v *DeviceCodeValidator) shouldSlowDown(ctx context.Context, handle string, code *model.DeviceCode, now time.Time) (bool, error) {
	last, seen, err := v.throttle.LastPoll(ctx, handle)
	if err != nil {
		return false, err
	}
	if seen && now.Before(last.Add(v.interval)) {
		return true, nil
	}

	// Track until the code itself dies.
	ttl := code.CreationTime.Add(time.Duration(code.Lifetime) * time.Second).Sub(now)
	if ttl < v.interval {
		ttl = v.interval
	}
	if err := v.throttle.SetLastPoll(ctx, handle, now, ttl); err != nil {
		return false, err
	}
	return false, nil
}

func (v *DeviceCodeValidator) raisePoll(ctx context.Context, code *model.DeviceCode, success bool) {
	e := events.New(events.DeviceCodePolled, events.CategoryDevice, success)
	e.ClientID = code.ClientID
	e.SubjectID = code.SubjectID
	v.sink.Raise(ctx, e)
}
