package insight

import (
	"context"
	"sync"
)

// Result is a response paired with the selection it answers.
type Result struct {
	Generation uint64
	EntityID   string
	Response   Response
}

// Selector tracks the selected delivery and drops responses that arrive
// after the selection changed. Each Select starts a new generation; a
// response is delivered only if its generation is still current.
type Selector struct {
	client   Client
	onResult func(Result)

	mu        sync.Mutex
	gen       uint64
	entityID  string
	latest    *Result
	discarded int
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSelector creates a selector. onResult may be nil.
func NewSelector(client Client, onResult func(Result)) *Selector {
	return &Selector{client: client, onResult: onResult}
}

// Select makes req the current selection and issues the request in the
// background. The previous in-flight request is cancelled.
func (s *Selector) Select(ctx context.Context, req Request) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.entityID = req.EntityID
	s.latest = nil
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		resp := s.client.Request(reqCtx, req)
		s.deliver(Result{Generation: gen, EntityID: req.EntityID, Response: resp})
	}()
	return gen
}

// Deselect clears the selection. Outstanding responses are discarded.
func (s *Selector) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.entityID = ""
	s.latest = nil
}

func (s *Selector) deliver(r Result) {
	s.mu.Lock()
	if r.Generation != s.gen {
		s.discarded++
		s.mu.Unlock()
		return
	}
	s.latest = &r
	cb := s.onResult
	s.mu.Unlock()

	if cb != nil {
		cb(r)
	}
}

// Current returns the selected entity and its response, if one arrived.
func (s *Selector) Current() (string, *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return s.entityID, nil
	}
	r := *s.latest
	return s.entityID, &r
}

// Discarded returns the number of stale responses dropped so far.
func (s *Selector) Discarded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Wait blocks until every issued request has returned.
func (s *Selector) Wait() {
	s.wg.Wait()
}
