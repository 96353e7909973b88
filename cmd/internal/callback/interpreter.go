// Package callback decides, at process start or presentation bootstrap, which
// of the competing authentication signals wins: the persisted session, a
// one-shot federated completion carried in URL parameters, or nothing.
package callback

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"shieldgate/cmd/internal/metrics"
	"shieldgate/cmd/internal/session"
	"shieldgate/cmd/internal/view"
)

// One-shot query parameter names delivered by the identity provider redirect.
const (
	paramEmail         = "email"
	paramName          = "name"
	paramToken         = "token"
	paramDashboardType = "dashboard_type"
)

// Branch identifies which interpretation path produced the outcome.
type Branch string

const (
	// BranchRehydrated: the durable store already held a session; it wins
	// unconditionally and URL parameters are never parsed.
	BranchRehydrated Branch = "rehydrated"

	// BranchFederated: one-shot URL parameters established a fresh federated
	// session, now persisted, with the parameters consumed.
	BranchFederated Branch = "federated"

	// BranchEmpty: no signal; logged out, home view.
	BranchEmpty Branch = "empty"
)

// Outcome is the interpretation result.
type Outcome struct {
	Session session.Session
	View    view.View
	Branch  Branch

	// Query is the query string the presentation layer must install in the
	// visible address: on the federated branch the one-shot parameters have
	// been stripped so a reload cannot replay them.
	Query url.Values
}

// Interpreter reconciles persisted state with one-shot callback parameters.
type Interpreter struct {
	log   *slog.Logger
	store session.Store
}

// New constructs an Interpreter over the given store.
func New(log *slog.Logger, store session.Store) *Interpreter {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{log: log, store: store}
}

// Interpret applies the priority order:
//
//  1. A non-empty persisted session is adopted as-is. Persisted state beats
//     transient parameters so a stale URL from history or a shared link can
//     never overwrite an established identity.
//  2. Complete one-shot parameters (email, name, token) build a federated
//     session, persist it, and are stripped from the returned query.
//  3. Otherwise: empty session, home view.
//
// Store and decode failures are absorbed into the empty session; the worst
// outcome of any failure here is "logged out". Interpret is idempotent: run
// again after the strip, it lands in branch 1 (or 3), never in branch 2.
func (it *Interpreter) Interpret(ctx context.Context, query url.Values) Outcome {
	persisted, err := it.store.Load(ctx)
	if err != nil {
		if errors.Is(err, session.ErrCorruptRecord) {
			it.log.Warn("callback.load.corrupt")
			metrics.CorruptSessions.Inc()
		} else {
			it.log.Error("callback.load.fail", "err", err)
		}
		persisted = session.Session{}
	}

	if !persisted.Empty() {
		it.log.Debug("callback.rehydrated", "subject", persisted.SubjectID, "role", string(persisted.Role))
		metrics.CallbackBranches.WithLabelValues(string(BranchRehydrated)).Inc()
		return Outcome{
			Session: persisted,
			View:    view.Landing(persisted),
			Branch:  BranchRehydrated,
			Query:   query,
		}
	}

	email := strings.TrimSpace(query.Get(paramEmail))
	name := strings.TrimSpace(query.Get(paramName))
	token := strings.TrimSpace(query.Get(paramToken))

	if email != "" && name != "" && token != "" {
		role := session.RoleGeneric
		if dt := query.Get(paramDashboardType); strings.TrimSpace(dt) != "" {
			role = session.ParseRoleKind(dt)
		}

		sess := session.Session{
			Token:       token,
			SubjectID:   email,
			DisplayName: name,
			Role:        role,
			Origin:      session.OriginFederated,
		}

		if err := it.store.Save(ctx, sess); err != nil {
			// The federated identity is still usable for this process
			// lifetime; it just will not survive a restart.
			it.log.Error("callback.persist.fail", "err", err)
		}

		it.log.Info("callback.federated", "subject", sess.SubjectID, "role", string(sess.Role))
		metrics.CallbackBranches.WithLabelValues(string(BranchFederated)).Inc()
		return Outcome{
			Session: sess,
			View:    view.Dashboard,
			Branch:  BranchFederated,
			Query:   stripOneShot(query),
		}
	}

	metrics.CallbackBranches.WithLabelValues(string(BranchEmpty)).Inc()
	return Outcome{
		Session: session.Session{},
		View:    view.Home,
		Branch:  BranchEmpty,
		Query:   query,
	}
}

// stripOneShot returns a copy of the query without the consumed parameters.
func stripOneShot(query url.Values) url.Values {
	clean := make(url.Values, len(query))
	for k, vs := range query {
		switch k {
		case paramEmail, paramName, paramToken, paramDashboardType:
			continue
		}
		clean[k] = append([]string(nil), vs...)
	}
	return clean
}
