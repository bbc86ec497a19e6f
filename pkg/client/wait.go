package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cenkalti/backoff/v5"
)

var errNotAllReady = errors.New("barrier not crossed")

// WaitForBarrier polls step until every required role is ready or tries run
// out. It returns the last status it read; running out of tries is not an
// error.
func WaitForBarrier(ctx context.Context, api *APIClient, roomID, step string, tries uint, interval time.Duration) (types.BarrierStatus, error) {
	var last types.BarrierStatus
	_, err := backoff.Retry(ctx, func() (types.BarrierStatus, error) {
		status, err := api.BarrierStatus(ctx, roomID, step)
		if err != nil {
			if isFatal(err) {
				return status, backoff.Permanent(err)
			}
			return status, err
		}
		last = status
		if !status.AllReady {
			return status, errNotAllReady
		}
		return status, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(tries),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return last, ctxErr
	}
	if err != nil && isFatal(err) {
		return last, err
	}
	return last, nil
}

// isFatal reports errors that polling cannot recover from.
func isFatal(err error) bool {
	return IsStatus(err, http.StatusForbidden) || IsStatus(err, http.StatusNotFound)
}
