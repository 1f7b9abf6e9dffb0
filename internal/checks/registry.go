// Package checks is the process-wide table of named enforcement predicates.
// Checks are registered once at startup, grouped into three domains, and
// looked up by name from layer declarations. The registry is closed-world:
// a declared-but-unregistered check name makes its layer unenforceable.
package checks

import (
	"fmt"
	"sort"
)

// Domain groups checks by what they guard.
type Domain string

const (
	DomainPolicy    Domain = "policy"
	DomainRisk      Domain = "risk"
	DomainAlignment Domain = "alignment"
)

// Domains lists all valid domains in evaluation order.
var Domains = []Domain{DomainPolicy, DomainRisk, DomainAlignment}

// Context is the request context handed to every predicate.
type Context struct {
	Route   string
	AgentID string
	Layer   string
	OrgID   string
	Input   any
	Fields  map[string]any
}

// Result is a single predicate outcome.
type Result struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Func is an enforcement predicate. Implementations must be side-effect
// light; a panicking predicate fails its own entry and nothing else.
type Func func(Context) Result

// CheckResult is one named outcome within a run.
type CheckResult struct {
	Name   string `json:"name"`
	Domain Domain `json:"domain"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// RunResult is the conjunction of all individual results.
type RunResult struct {
	OK      bool          `json:"ok"`
	Results []CheckResult `json:"results"`
}

// Set names the checks to run, per domain.
type Set struct {
	Policy    []string
	Risk      []string
	Alignment []string
}

// Empty reports whether the set declares no checks at all.
func (s Set) Empty() bool {
	return len(s.Policy) == 0 && len(s.Risk) == 0 && len(s.Alignment) == 0
}

// Registry holds registered predicates. Built once by the startup routine
// and passed by handle into request handlers; reads need no locking after
// construction.
type Registry struct {
	byDomain map[Domain]map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{byDomain: make(map[Domain]map[string]Func, len(Domains))}
	for _, d := range Domains {
		r.byDomain[d] = make(map[string]Func)
	}
	return r
}

// Register adds a predicate. Registering the same name twice in a domain is
// a fatal configuration error: two independently authored checks must never
// silently shadow one another.
func (r *Registry) Register(domain Domain, name string, fn Func) error {
	m, ok := r.byDomain[domain]
	if !ok {
		return fmt.Errorf("checks: unknown domain %q for check %q", domain, name)
	}
	if name == "" {
		return fmt.Errorf("checks: check name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("checks: nil predicate for %s check %q", domain, name)
	}
	if _, exists := m[name]; exists {
		return fmt.Errorf("checks: duplicate %s check: %s", domain, name)
	}
	m[name] = fn
	return nil
}

// Has reports whether a check name is registered in a domain.
func (r *Registry) Has(domain Domain, name string) bool {
	_, ok := r.byDomain[domain][name]
	return ok
}

// Names returns the sorted registered names for a domain.
func (r *Registry) Names(domain Domain) []string {
	m := r.byDomain[domain]
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run invokes every named predicate against ctx. A missing or panicking
// predicate fails its own entry, annotated with the cause, and never
// crashes the caller. Overall OK is the conjunction of all results,
// vacuously true when the set is empty.
func (r *Registry) Run(set Set, ctx Context) RunResult {
	var results []CheckResult

	run := func(domain Domain, names []string) {
		for _, name := range names {
			fn, ok := r.byDomain[domain][name]
			if !ok {
				results = append(results, CheckResult{
					Name: name, Domain: domain, OK: false,
					Detail: "check not registered",
				})
				continue
			}
			res := invoke(fn, ctx)
			results = append(results, CheckResult{
				Name: name, Domain: domain, OK: res.OK, Detail: res.Detail,
			})
		}
	}

	run(DomainPolicy, set.Policy)
	run(DomainRisk, set.Risk)
	run(DomainAlignment, set.Alignment)

	ok := true
	for _, res := range results {
		if !res.OK {
			ok = false
			break
		}
	}
	return RunResult{OK: ok, Results: results}
}

// invoke converts a predicate panic into a failing result.
func invoke(fn Func, ctx Context) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{OK: false, Detail: fmt.Sprintf("check panicked: %v", p)}
		}
	}()
	return fn(ctx)
}
