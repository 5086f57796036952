// Package handoff implements Handoff/Routing (C13): the provider-switch
// memo and fallback chain that takes over when the active model provider
// fails in a way worth switching away from (spec.md §4.13).
//
// The fallback-chain walk and retry-on-new-provider shape are grounded on
// the backoff-with-jitter loop of the teacher's runtime/a2a/retry package;
// the force=true user-initiated bypass is grounded on the
// allow/deny-list shape of runtime/a2a/policy, generalized from per-skill
// access control to per-provider fallback eligibility. Provider error
// classification reuses model.ProviderErrorKind directly.
package handoff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentfleet/orchestrator/model"
)

// Reason identifies why a handoff occurred.
type Reason string

const (
	// AutomaticFallback means the router selected the next provider after
	// a fallback-worthy provider error.
	AutomaticFallback Reason = "automatic_fallback"
	// UserInitiated means the user explicitly requested a provider switch.
	UserInitiated Reason = "user_initiated"
)

// HandoffMemo is the snapshot handed to the next provider when switching
// mid-run (spec.md §3 "HandoffMemo"). It is read-only once Finalize has
// computed IntegrityHash; mutating any field after that point is a
// programming error the caller must not make.
type HandoffMemo struct {
	From             string            `json:"from"`
	To               string            `json:"to"`
	Reason           Reason            `json:"reason"`
	ProjectState     string            `json:"project_state"`
	ExecutionContext map[string]string `json:"execution_context"`
	Constraints      []string          `json:"constraints"`
	AntiPatterns     []string          `json:"anti_patterns"`
	NextActions      []string          `json:"next_actions"`
	IntegrityHash    string            `json:"integrity_hash"`

	finalized bool
}

// Finalize computes IntegrityHash over the memo's content and marks it
// read-only. Calling Finalize more than once is a no-op; the hash is
// computed once from the content as it stood at first finalization.
func (m *HandoffMemo) Finalize() {
	if m.finalized {
		return
	}
	m.IntegrityHash = m.computeHash()
	m.finalized = true
}

// VerifyIntegrity reports whether IntegrityHash still matches the memo's
// current content, detecting tampering or accidental mutation after
// finalization.
func (m *HandoffMemo) VerifyIntegrity() bool {
	return m.finalized && m.IntegrityHash == m.computeHash()
}

func (m *HandoffMemo) computeHash() string {
	cp := *m
	cp.IntegrityHash = ""
	cp.finalized = false
	b, err := json.Marshal(cp)
	if err != nil {
		// Marshaling a struct of strings/maps/slices cannot fail; this
		// would only trip if a future field adds something unmarshalable.
		panic(fmt.Sprintf("handoff: memo is not serializable: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ErrAllProvidersFailed is returned when every provider in the fallback
// chain has been exhausted without a successful handoff.
var ErrAllProvidersFailed = errors.New("handoff: all providers in fallback chain failed")

// FallbackPolicy gates which providers are eligible to receive an
// automatic fallback handoff, mirroring the teacher's skill allow/deny
// list shape applied to provider names instead of skills. An empty
// AllowList means every provider not in DenyList is eligible.
type FallbackPolicy struct {
	AllowList []string
	DenyList  []string
}

func (p FallbackPolicy) eligible(provider string) bool {
	deny := make(map[string]struct{}, len(p.DenyList))
	for _, d := range p.DenyList {
		deny[d] = struct{}{}
	}
	if _, denied := deny[provider]; denied {
		return false
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if a == provider {
			return true
		}
	}
	return false
}

// MemoBuilder produces the content fields of a HandoffMemo for a
// particular run at the moment of handoff. Callers supply one per run so
// ProjectState/ExecutionContext/Constraints reflect live state rather than
// being threaded through every call site.
type MemoBuilder interface {
	BuildMemo(ctx context.Context, from, to string, reason Reason) (HandoffMemo, error)
}

// MemoBuilderFunc adapts a function to MemoBuilder.
type MemoBuilderFunc func(ctx context.Context, from, to string, reason Reason) (HandoffMemo, error)

func (f MemoBuilderFunc) BuildMemo(ctx context.Context, from, to string, reason Reason) (HandoffMemo, error) {
	return f(ctx, from, to, reason)
}

// Record is one completed handoff kept against the run for audit/replay.
type Record struct {
	Memo HandoffMemo
	At   time.Time
}

// Router owns a project's fallback chain and the health state of each
// provider in it, and executes the four-step handoff algorithm of
// spec.md §4.13 whenever a fallback-worthy ProviderError surfaces.
type Router struct {
	mu      sync.Mutex
	chain   []string
	policy  FallbackPolicy
	health  *healthTracker
	builder MemoBuilder
	records []Record
	active  string
}

// NewRouter constructs a Router over chain (ordered, most-preferred
// first). The active provider starts empty; SetActive pins it, and it need
// not be chain[0] (a run may start pinned to a provider outside the chain).
func NewRouter(chain []string, policy FallbackPolicy, builder MemoBuilder) *Router {
	return &Router{
		chain:   append([]string(nil), chain...),
		policy:  policy,
		health:  newHealthTracker(),
		builder: builder,
	}
}

// Active returns the provider currently selected.
func (r *Router) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActive pins the initial active provider without recording a handoff;
// used once at run start.
func (r *Router) SetActive(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = provider
}

// Records returns every handoff recorded against this run so far.
func (r *Router) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// ReportFailure tells the router a call to provider failed with err,
// updating that provider's health state so future selection steps avoid
// it while it is unhealthy.
func (r *Router) ReportFailure(provider string, err error) {
	r.health.recordFailure(provider, err)
}

// ReportSuccess clears provider's failure count, marking it healthy again.
func (r *Router) ReportSuccess(provider string) {
	r.health.recordSuccess(provider)
}

// Handoff implements spec.md §4.13 steps 1-3 for an automatic fallback:
// given the ProviderError that just occurred on the active provider, it
// walks the fallback chain for the next healthy, policy-eligible
// provider, builds a HandoffMemo, finalizes and records it, and switches
// Active. Callers perform step 4 (retry the pending request) themselves
// using the returned memo.To.
//
// If perr is not fallback-worthy, Handoff returns it unchanged without
// switching providers. If every provider in the chain is unhealthy,
// ineligible, or the provider that just failed (perr.Provider), it returns
// ErrAllProvidersFailed.
func (r *Router) Handoff(ctx context.Context, perr *model.ProviderError) (HandoffMemo, error) {
	if perr == nil {
		return HandoffMemo{}, fmt.Errorf("handoff: provider error is required")
	}
	if !perr.FallbackWorthy() {
		return HandoffMemo{}, perr
	}
	r.ReportFailure(perr.Provider, perr)
	return r.switchProvider(ctx, perr.Provider, AutomaticFallback, false)
}

// UserSwitch implements the user-initiated path: it follows the same
// memo/record/switch steps as an automatic fallback but selects to
// explicitly rather than walking the chain, and, when force is true,
// bypasses FallbackPolicy eligibility checks entirely.
func (r *Router) UserSwitch(ctx context.Context, from, to string, force bool) (HandoffMemo, error) {
	if !force && !r.policy.eligible(to) {
		return HandoffMemo{}, fmt.Errorf("handoff: provider %q is not eligible under the current fallback policy", to)
	}
	memo, err := r.buildAndRecord(ctx, from, to, UserInitiated)
	if err != nil {
		return HandoffMemo{}, err
	}
	r.mu.Lock()
	r.active = to
	r.mu.Unlock()
	return memo, nil
}

func (r *Router) switchProvider(ctx context.Context, from string, reason Reason, force bool) (HandoffMemo, error) {
	r.mu.Lock()
	chain := append([]string(nil), r.chain...)
	r.mu.Unlock()

	for _, candidate := range chain {
		if candidate == from {
			continue
		}
		if !force && !r.policy.eligible(candidate) {
			continue
		}
		if !r.health.isHealthy(candidate) {
			continue
		}
		memo, err := r.buildAndRecord(ctx, from, candidate, reason)
		if err != nil {
			return HandoffMemo{}, err
		}
		r.mu.Lock()
		r.active = candidate
		r.mu.Unlock()
		return memo, nil
	}
	return HandoffMemo{}, ErrAllProvidersFailed
}

func (r *Router) buildAndRecord(ctx context.Context, from, to string, reason Reason) (HandoffMemo, error) {
	memo, err := r.builder.BuildMemo(ctx, from, to, reason)
	if err != nil {
		return HandoffMemo{}, fmt.Errorf("handoff: build memo %s->%s: %w", from, to, err)
	}
	memo.From, memo.To, memo.Reason = from, to, reason
	memo.Finalize()

	r.mu.Lock()
	r.records = append(r.records, Record{Memo: memo, At: time.Now()})
	r.mu.Unlock()
	return memo, nil
}
