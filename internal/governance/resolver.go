// Package governance classifies packages by realm (jurisdiction) and
// authority (publishing organization).
//
// Both classifications are ordered rule chains evaluated top to bottom; the
// first matching rule wins. Inputs that match nothing are collected for review
// instead of failing.
package governance

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/GonzoDMX/artifact-index/internal/models"
)

// Resolver holds the run scoped classification state. It is not safe for
// concurrent use; each run owns its own Resolver.
type Resolver struct {
	realms      mapset.Set[string]
	authorities mapset.Set[string]

	unresolvedRealms      mapset.Set[string]
	unresolvedAuthorities mapset.Set[string]

	// artifact independent outcomes, per package id
	realmMemo     map[string]outcome
	authorityMemo map[string]outcome
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{
		realms:                mapset.NewThreadUnsafeSet[string](),
		authorities:           mapset.NewThreadUnsafeSet[string](),
		unresolvedRealms:      mapset.NewThreadUnsafeSet[string](),
		unresolvedAuthorities: mapset.NewThreadUnsafeSet[string](),
		realmMemo:             make(map[string]outcome),
		authorityMemo:         make(map[string]outcome),
	}
}

// Realm resolves the realm of a package, optionally using an artifact of it.
// ok is false when no realm applies.
func (r *Resolver) Realm(pid string, a *models.Artifact) (code string, ok bool) {
	return r.resolve(realmRules, r.realmMemo, r.realms, r.unresolvedRealms, pid, a)
}

// Authority resolves the publishing authority of a package, optionally using
// an artifact of it.
func (r *Resolver) Authority(pid string, a *models.Artifact) (code string, ok bool) {
	return r.resolve(authorityRules, r.authorityMemo, r.authorities, r.unresolvedAuthorities, pid, a)
}

func (r *Resolver) resolve(rules []rule, memo map[string]outcome, seen, unresolved mapset.Set[string], pid string, a *models.Artifact) (string, bool) {
	in := input{pid: stripVersion(pid), rawPID: pid, artifact: a}

	var out outcome
	if a == nil {
		cached, hit := memo[pid]
		if !hit {
			cached = evaluate(rules, in)
			memo[pid] = cached
		}
		out = cached
	} else {
		out = evaluate(rules, in)
	}

	switch out.code {
	case multiNational:
		return "", false
	case "":
		if out.unresolved != "" {
			unresolved.Add(out.unresolved)
		}
		return "", false
	}
	seen.Add(out.code)
	return out.code, true
}

// Realms returns the distinct realms resolved so far, sorted.
func (r *Resolver) Realms() []string { return sorted(r.realms) }

// Authorities returns the distinct authorities resolved so far, sorted.
func (r *Resolver) Authorities() []string { return sorted(r.authorities) }

// UnresolvedRealms returns the inputs no realm rule could classify, sorted.
func (r *Resolver) UnresolvedRealms() []string { return sorted(r.unresolvedRealms) }

// UnresolvedAuthorities returns the inputs no authority rule could classify,
// sorted.
func (r *Resolver) UnresolvedAuthorities() []string { return sorted(r.unresolvedAuthorities) }

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
