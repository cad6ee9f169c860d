package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
)

// ErrNoActiveAccounts is returned when a trade action fires with nothing
// enabled to receive it.
var ErrNoActiveAccounts = errors.New("dispatch: no active accounts")

// Func performs one account's share of an action and returns the broker's
// acknowledgement payload.
type Func func(ctx context.Context, target accounts.Target) (any, error)

// Result is one account's outcome within a fan-out.
type Result struct {
	AccountID string `json:"account_id"`
	Nickname  string `json:"nickname"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Status classifies a fan-out as a whole.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Outcome aggregates per-account results with a human-readable summary.
// One slow or failing account never hides the others' results. BatchID
// ties the outcome to its journal entries and log lines.
type Outcome struct {
	BatchID   string   `json:"batch_id"`
	Status    Status   `json:"status"`
	Message   string   `json:"message"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// FanOut runs fn once per target concurrently and waits for every account
// to finish. Results come back in target order regardless of completion
// order; a per-account failure is captured in its Result, never returned
// as the call's error.
func FanOut(ctx context.Context, verb string, targets []accounts.Target, fn Func) (Outcome, error) {
	if len(targets) == 0 {
		return Outcome{}, ErrNoActiveAccounts
	}

	batchID := uuid.NewString()
	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target accounts.Target) {
			defer wg.Done()
			res := Result{AccountID: target.AccountID, Nickname: target.Nickname}
			data, err := fn(ctx, target)
			if err != nil {
				res.Error = err.Error()
				slog.Warn("Dispatch leg failed",
					"batch_id", batchID,
					"verb", verb,
					"account_id", target.AccountID,
					"nickname", target.Nickname,
					"error", err)
			} else {
				res.Success = true
				res.Data = data
			}
			results[i] = res
		}(i, target)
	}
	wg.Wait()

	out := classify(verb, results)
	out.BatchID = batchID
	slog.Info("Dispatch complete",
		"batch_id", batchID,
		"verb", verb,
		"status", out.Status,
		"succeeded", out.Succeeded,
		"failed", out.Failed)
	return out, nil
}

// classify folds per-account results into an overall status. Partial
// failures name the failing accounts so the operator knows where to look.
func classify(verb string, results []Result) Outcome {
	out := Outcome{Results: results}
	var failed []string
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
			name := r.Nickname
			if name == "" {
				name = r.AccountID
			}
			failed = append(failed, name)
		}
	}

	switch {
	case out.Failed == 0:
		out.Status = StatusOK
		out.Message = fmt.Sprintf("%s succeeded on %d account(s)", verb, out.Succeeded)
	case out.Succeeded == 0:
		out.Status = StatusFailed
		out.Message = fmt.Sprintf("%s failed on all %d account(s)", verb, out.Failed)
	default:
		out.Status = StatusPartial
		out.Message = fmt.Sprintf("%s failed on: %s", verb, strings.Join(failed, ", "))
	}
	return out
}
