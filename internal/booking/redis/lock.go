package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lock holds a vehicle's calendar days in Redis while the availability check
// and insert run, so two concurrent requests for an overlapping range cannot
// both pass the database check. The TTL bounds how long an abandoned hold can
// block a vehicle.
type Lock struct {
	Client  *redis.Client
	HoldTTL time.Duration
}

func NewLock(client *redis.Client, holdTTL time.Duration) *Lock {
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	return &Lock{Client: client, HoldTTL: holdTTL}
}

func holdKey(vehicleID, day string) string {
	return fmt.Sprintf("vehicle_hold:%s:%s", vehicleID, day)
}

// HoldDay locks a single calendar day for a vehicle.
func (l *Lock) HoldDay(ctx context.Context, vehicleID, day, bookingID string) (bool, error) {
	return l.Client.SetNX(ctx, holdKey(vehicleID, day), bookingID, l.HoldTTL).Result()
}

// ReleaseDay releases a day only if this booking owns the hold.
func (l *Lock) ReleaseDay(ctx context.Context, vehicleID, day, bookingID string) error {
	key := holdKey(vehicleID, day)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == bookingID {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// HoldRange locks every day in the range. On any failure the days locked so
// far are rolled back so a partial hold never lingers.
func (l *Lock) HoldRange(ctx context.Context, vehicleID string, days []string, bookingID string) (bool, error) {
	held := []string{}
	for _, day := range days {
		ok, err := l.HoldDay(ctx, vehicleID, day, bookingID)
		if err != nil {
			for _, h := range held {
				_ = l.ReleaseDay(ctx, vehicleID, h, bookingID)
			}
			return false, err
		}
		if !ok {
			for _, h := range held {
				_ = l.ReleaseDay(ctx, vehicleID, h, bookingID)
			}
			return false, nil
		}
		held = append(held, day)
	}
	return true, nil
}

// ReleaseRange releases every day in the range, returning the first error.
func (l *Lock) ReleaseRange(ctx context.Context, vehicleID string, days []string, bookingID string) error {
	var firstErr error
	for _, day := range days {
		err := l.ReleaseDay(ctx, vehicleID, day, bookingID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
