package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// windowLimitRequestLimiter lets at most limit operations finish within any window.
// Operations are measured from when they finish, so a slow upstream call never lets
// the next window start early.
type windowLimitRequestLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	availableSlots chan struct{}
	// Sorted oldest first, always limit long while no operation is in flight
	finishedRequests []time.Time
	mutex            sync.Mutex
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimitRequestLimiter {
	if limit < 1 {
		panic("window limit request limiter needs a positive limit")
	}

	availableSlots := make(chan struct{}, limit)
	for range limit {
		availableSlots <- struct{}{}
	}

	// No finished requests within the window -> no waiting for the first requests
	finishedRequests := make([]time.Time, limit)
	veryOldTime := nowFunc().Add(-window)
	for i := range finishedRequests {
		finishedRequests[i] = veryOldTime
	}

	return &windowLimitRequestLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		availableSlots:   availableSlots,
		finishedRequests: finishedRequests,
		mutex:            sync.Mutex{},
	}
}

func insertSortedOrder(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(arr, i, t)
}

// Limit runs operation once the window has room, returning false if it never ran
func (l *windowLimitRequestLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	return l.LimitCancelable(ctx, maxOperationTime, func() bool {
		operation()
		return true
	})
}

// LimitCancelable is like Limit, but operation may decline to run by returning false,
// in which case it does not count against the window.
// Returns false without waiting when the wait plus maxOperationTime would outlast the context deadline.
func (l *windowLimitRequestLimiter) LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool {
	return l.waitIf(ctx, func(wait time.Duration) bool {
		deadline, ok := ctx.Deadline()
		if !ok {
			return true
		}

		return wait+maxOperationTime <= deadline.Sub(l.nowFunc())
	}, operation)
}

func (l *windowLimitRequestLimiter) waitIf(ctx context.Context, shouldRun func(wait time.Duration) bool, operation func() bool) bool {
	select {
	case <-l.availableSlots:
		defer func() {
			l.availableSlots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldestRequest, ok := l.grabOldestFinishedRequest(shouldRun)
	if !ok {
		return false
	}
	// Put back what we grabbed unless the operation actually ran
	requestToInsert := oldestRequest
	defer func() {
		l.insertFinishedRequest(requestToInsert)
	}()

	if wait := l.computeWait(oldestRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	if ran := operation(); !ran {
		return false
	}

	requestToInsert = l.nowFunc()
	return true
}

func (l *windowLimitRequestLimiter) computeWait(oldRequest time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(oldRequest)
}

func (l *windowLimitRequestLimiter) insertFinishedRequest(finishedRequest time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.finishedRequests = insertSortedOrder(l.finishedRequests, finishedRequest)
}

func (l *windowLimitRequestLimiter) grabOldestFinishedRequest(shouldRun func(time.Duration) bool) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldestRequest := l.finishedRequests[0]
	if !shouldRun(l.computeWait(oldestRequest)) {
		return time.Time{}, false
	}

	l.finishedRequests = l.finishedRequests[1:]
	return oldestRequest, true
}
