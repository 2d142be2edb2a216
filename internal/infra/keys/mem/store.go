package mem

import (
	"context"
	"fmt"
	"sync"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

type record struct {
	agent domain.Agent
	kp    domain.DIDKeyPair
}

// Store keeps agent records and key pairs in process memory. It backs tests
// and the no-database mode of the CLI; anything durable uses the db
// repository.
type Store struct {
	mu   sync.RWMutex
	rows map[string]record
}

func New() *Store {
	return &Store{rows: make(map[string]record)}
}

func (s *Store) Put(ctx context.Context, agent domain.Agent, kp domain.DIDKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[agent.ID]; ok {
		return fmt.Errorf("%w: agent %s already has a key pair", domain.ErrValidation, agent.ID)
	}
	s.rows[agent.ID] = record{agent: agent, kp: kp}
	return nil
}

func (s *Store) Get(ctx context.Context, agentID string) (*domain.DIDKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[agentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	kp := row.kp
	return &kp, nil
}

func (s *Store) Resolve(ctx context.Context, agentID string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[agentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	agent := row.agent
	return &agent, nil
}

var _ usecase.KeyStore = (*Store)(nil)
