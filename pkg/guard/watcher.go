package guard

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/contractanalyser/authbridge/pkg/assurance"
)

// Watcher tracks the guard decision for one device context across session
// changes. Every session change restarts the evaluation from the pending
// state; each evaluation carries a generation number and results from a
// superseded generation are discarded, so a slow upstream call from an
// earlier session can never overwrite a newer decision.
type Watcher struct {
	guard *Guard

	mu        sync.Mutex
	gen       uint64
	decision  Decision
	stopClear func() bool
}

// NewWatcher creates a watcher starting in the pending state.
func NewWatcher(g *Guard) *Watcher {
	return &Watcher{
		guard:    g,
		decision: Decision{Kind: DecisionLoading},
	}
}

// OnSessionChange restarts evaluation for the new session state. The
// evaluation runs on the calling goroutine of the returned function's
// completion; callers that need it asynchronous run it in their own
// goroutine. A pending flag-clear timer from the previous evaluation is
// cancelled before the new one starts.
func (w *Watcher) OnSessionChange(ctx context.Context, in Input) {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.decision = Decision{Kind: DecisionLoading}
	if w.stopClear != nil {
		w.stopClear()
		w.stopClear = nil
	}
	w.mu.Unlock()

	d, stop := w.guard.evaluateWatched(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		// A newer session change superseded this evaluation; its timer must
		// not clear a flag belonging to the newer state either.
		if stop != nil {
			stop()
		}
		slog.Debug("discarding stale guard evaluation", "gen", gen, "current", w.gen)
		return
	}
	w.decision = d
	w.stopClear = stop
	if w.guard.metrics != nil {
		w.guard.metrics.ObserveDecision(w.guard.variant, d.Kind)
	}
}

// Decision returns the currently published decision.
func (w *Watcher) Decision() Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.decision
}

// Close cancels any pending flag-clear timer.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopClear != nil {
		w.stopClear()
		w.stopClear = nil
	}
}

// evaluateWatched mirrors decide but hands the flag-clear stop function to
// the caller instead of letting the timer run unowned.
func (g *Guard) evaluateWatched(ctx context.Context, in Input) (Decision, func() bool) {
	if in.Session == nil {
		return Decision{Kind: DecisionRedirectToLogin, Location: g.routes.Login}, nil
	}

	if g.variant == VariantAdmin {
		isAdmin, err := g.admins.IsAdmin(ctx, in.Session.UserID)
		if err != nil {
			slog.Error("admin check failed, treating as non-admin", "user", in.Session.UserID, "err", err)
			return Decision{Kind: DecisionRedirectToDashboard, Location: g.routes.Dashboard}, nil
		}
		if !isAdmin {
			return Decision{Kind: DecisionRedirectToDashboard, Location: g.routes.Dashboard}, nil
		}
	}

	factors, err := g.factors.ListFactors(ctx, in.Session.UserID)
	if err != nil {
		slog.Error("factor listing failed, skipping second-factor check", "user", in.Session.UserID, "err", err)
		factors = nil
	}

	result := assurance.Evaluate(in.Session, factors, g.bridge.MFAPassed(ctx, in.DeviceKey))
	if result.Level == assurance.Insufficient {
		return Decision{
			Kind:     DecisionRedirectToMFAChallenge,
			Location: g.routes.MFAChallenge + "?redirect=" + url.QueryEscape(in.Target),
		}, nil
	}

	var stop func() bool
	if result.ByFlag {
		deviceKey := in.DeviceKey
		stop = g.afterFunc(g.clearDelay, func() {
			if err := g.bridge.ClearMFAPassed(context.Background(), deviceKey); err != nil {
				slog.Warn("failed to clear just-passed flag", "device", deviceKey, "err", err)
			}
		})
	}
	return Decision{Kind: DecisionAdmit}, stop
}
