// Package memory implementa core.Repository en memoria, con maps bajo mutex.
// Es el store de dev y de tests; el contrato (ErrNotFound, deletes
// idempotentes, unicidad por hash) es el mismo que el de pg.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/store/core"
)

type Store struct {
	mu sync.RWMutex

	domainsByID   map[string]*core.Domain
	domainsBySlug map[string]*core.Domain
	clients       map[string]*core.Client // key: domainID + "/" + clientID
	usersByID     map[string]*core.User   // key: domainID + "/" + id
	usersBySub    map[string]*core.User   // key: domainID + "/" + subject
	access        map[string]*core.AccessTokenRecord
	refresh       map[string]*core.RefreshToken // key: tokenHash
	refreshByID   map[string]*core.RefreshToken
	backchannel   map[string]*core.BackchannelRequest

	now core.Now
}

func New() *Store {
	return &Store{
		domainsByID:   map[string]*core.Domain{},
		domainsBySlug: map[string]*core.Domain{},
		clients:       map[string]*core.Client{},
		usersByID:     map[string]*core.User{},
		usersBySub:    map[string]*core.User{},
		access:        map[string]*core.AccessTokenRecord{},
		refresh:       map[string]*core.RefreshToken{},
		refreshByID:   map[string]*core.RefreshToken{},
		backchannel:   map[string]*core.BackchannelRequest{},
		now:           time.Now,
	}
}

// WithNow inyecta el reloj (tests).
func (s *Store) WithNow(now core.Now) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func key2(a, b string) string { return a + "/" + b }

// ----- seeds (dev/tests) -----

func (s *Store) PutDomain(d *core.Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domainsByID[d.ID] = d
	s.domainsBySlug[d.Slug] = d
}

func (s *Store) PutClient(c *core.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[key2(c.DomainID, c.ClientID)] = c
}

func (s *Store) PutUser(u *core.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersByID[key2(u.DomainID, u.ID)] = u
	s.usersBySub[key2(u.DomainID, u.Subject)] = u
}

func (s *Store) PutBackchannelRequest(r *core.BackchannelRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backchannel[r.AuthReqID] = r
}

// ----- lecturas -----

func (s *Store) GetDomainByID(_ context.Context, id string) (*core.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.domainsByID[id]; ok {
		return d, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetDomainBySlug(_ context.Context, slug string) (*core.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.domainsBySlug[slug]; ok {
		return d, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetClientByClientID(_ context.Context, domainID, clientID string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.clients[key2(domainID, clientID)]; ok {
		return c, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, domainID, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.usersByID[key2(domainID, id)]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetUserBySubject(_ context.Context, domainID, subject string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.usersBySub[key2(domainID, subject)]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetBackchannelRequest(_ context.Context, authReqID string) (*core.BackchannelRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.backchannel[authReqID]
	if !ok || s.now().After(r.ExpiresAt) {
		return nil, core.ErrNotFound
	}
	return r, nil
}

// ----- access tokens -----

func (s *Store) CreateAccessToken(_ context.Context, rec *core.AccessTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.access[rec.TokenHash]; dup {
		return core.ErrConflict
	}
	s.access[rec.TokenHash] = rec
	return nil
}

func (s *Store) GetAccessTokenByHash(_ context.Context, tokenHash string) (*core.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.access[tokenHash]
	if !ok || s.now().After(rec.ExpiresAt) {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

func (s *Store) DeleteAccessToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, tokenHash) // idempotente
	return nil
}

// ----- refresh tokens -----

func (s *Store) CreateRefreshToken(_ context.Context, rt *core.RefreshToken) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.refresh[rt.TokenHash]; dup {
		return "", core.ErrConflict
	}
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	s.refresh[rt.TokenHash] = rt
	s.refreshByID[rt.ID] = rt
	return rt.ID, nil
}

func (s *Store) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*core.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.refresh[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rt, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt, ok := s.refresh[tokenHash]; ok {
		delete(s.refreshByID, rt.ID)
	}
	delete(s.refresh, tokenHash) // idempotente
	return nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refreshByID[id]
	if !ok {
		return nil // idempotente
	}
	now := s.now()
	rt.RevokedAt = &now
	return nil
}
