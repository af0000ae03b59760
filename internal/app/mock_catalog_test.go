package app_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Amund211/mediagate/internal/domain"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	t    *testing.T
	name string

	lock  sync.Mutex
	calls map[domain.Operation]int

	search     func(query domain.SearchQuery) (domain.MediaPage, error)
	top        func(query domain.TopQuery) (domain.MediaPage, error)
	season     func(query domain.SeasonQuery) (domain.MediaPage, error)
	detail     func(query domain.DetailQuery) (domain.Media, error)
	characters func(query domain.CharactersQuery) (domain.CharacterPage, error)
}

func newMockCatalog(t *testing.T, name string) *mockCatalog {
	return &mockCatalog{t: t, name: name, calls: map[domain.Operation]int{}}
}

func (m *mockCatalog) Name() string {
	return m.name
}

func (m *mockCatalog) record(op domain.Operation) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls[op]++
}

func (m *mockCatalog) callCount(op domain.Operation) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[op]
}

func (m *mockCatalog) Search(ctx context.Context, query domain.SearchQuery) (domain.MediaPage, error) {
	m.t.Helper()
	m.record(domain.OperationSearch)
	require.NotNil(m.t, m.search, "unexpected search on %s", m.name)
	return m.search(query)
}

func (m *mockCatalog) Top(ctx context.Context, query domain.TopQuery) (domain.MediaPage, error) {
	m.t.Helper()
	m.record(domain.OperationTop)
	require.NotNil(m.t, m.top, "unexpected top on %s", m.name)
	return m.top(query)
}

func (m *mockCatalog) Season(ctx context.Context, query domain.SeasonQuery) (domain.MediaPage, error) {
	m.t.Helper()
	m.record(domain.OperationSeason)
	require.NotNil(m.t, m.season, "unexpected season on %s", m.name)
	return m.season(query)
}

func (m *mockCatalog) Detail(ctx context.Context, query domain.DetailQuery) (domain.Media, error) {
	m.t.Helper()
	m.record(domain.OperationDetail)
	require.NotNil(m.t, m.detail, "unexpected detail on %s", m.name)
	return m.detail(query)
}

func (m *mockCatalog) Characters(ctx context.Context, query domain.CharactersQuery) (domain.CharacterPage, error) {
	m.t.Helper()
	m.record(domain.OperationCharacters)
	require.NotNil(m.t, m.characters, "unexpected characters on %s", m.name)
	return m.characters(query)
}

func fallbackFor(ops ...domain.Operation) func(op domain.Operation) bool {
	return func(op domain.Operation) bool {
		for _, enabled := range ops {
			if enabled == op {
				return true
			}
		}
		return false
	}
}
