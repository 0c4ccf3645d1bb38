package memory

import (
	"context"
	"fmt"

	"github.com/hamed0406/imisu/internal/domain"
	"github.com/hamed0406/imisu/internal/repo"
)

// Store is a read-only registry built once from the loaded config. It is
// safe for concurrent use because nothing mutates it after New.
type Store struct {
	services []domain.Service
	byName   map[string]int
}

// New copies services; later changes to the slice do not leak in. On a
// duplicate name the first entry wins.
func New(services []domain.Service) *Store {
	s := &Store{
		services: make([]domain.Service, 0, len(services)),
		byName:   make(map[string]int, len(services)),
	}
	for _, svc := range services {
		if _, dup := s.byName[svc.Name]; dup {
			continue
		}
		s.byName[svc.Name] = len(s.services)
		s.services = append(s.services, svc)
	}
	return s
}

func (m *Store) All(ctx context.Context) ([]domain.Service, error) {
	out := make([]domain.Service, len(m.services))
	copy(out, m.services)
	return out, nil
}

func (m *Store) Enabled(ctx context.Context) ([]domain.Service, error) {
	out := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, name string) (domain.Service, error) {
	i, ok := m.byName[name]
	if !ok || !m.services[i].Enabled() {
		return domain.Service{}, fmt.Errorf("%w: %q", repo.ErrNotFound, name)
	}
	return m.services[i], nil
}
