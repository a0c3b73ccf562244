package dom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Scope records the temporary copies created on a surface and removes them
// on Release. Release is meant to be deferred right after NewScope.
type Scope struct {
	surface Surface

	mu   sync.Mutex
	refs []string
}

// NewScope creates a Scope bound to surface.
func NewScope(surface Surface) *Scope {
	return &Scope{surface: surface}
}

// Clone creates a copy through the surface and records it.
func (s *Scope) Clone(ctx context.Context, ref string, spec CloneSpec) (string, error) {
	clone, err := s.surface.Clone(ctx, ref, spec)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.refs = append(s.refs, clone)
	s.mu.Unlock()
	return clone, nil
}

// Remove detaches one recorded copy ahead of Release.
func (s *Scope) Remove(ctx context.Context, ref string) error {
	s.mu.Lock()
	idx := slices.Index(s.refs, ref)
	if idx >= 0 {
		s.refs = slices.Delete(s.refs, idx, idx+1)
	}
	s.mu.Unlock()
	if idx < 0 {
		return fmt.Errorf("ref %q not owned by scope", ref)
	}
	return s.surface.Remove(context.WithoutCancel(ctx), ref)
}

// Len returns the number of copies still attached.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Release removes every remaining copy, newest first. It ignores
// cancellation of ctx so cleanup also runs after an aborted export.
func (s *Scope) Release(ctx context.Context) error {
	s.mu.Lock()
	refs := s.refs
	s.refs = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(refs) - 1; i >= 0; i-- {
		if err := s.surface.Remove(ctx, refs[i]); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", refs[i], err))
		}
	}
	return errors.Join(errs...)
}
