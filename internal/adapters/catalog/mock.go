package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
)

// MockClient is a scripted stand-in for the catalog service. Tests push
// responses in the order they expect calls to happen; each call pops the
// front of the queue. Running out of scripted responses, or popping a
// response of the wrong kind, panics, since either means the code under
// test made a call the test didn't anticipate.
type MockClient struct {
	mu        sync.Mutex
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	groups   []domain.ResolvedPackageGroup
	search   *domain.SearchResults
	packages *domain.PackageDetails
	err      error
}

func (r mockResponse) kind() string {
	switch {
	case r.err != nil:
		return "error"
	case r.search != nil:
		return "search"
	case r.packages != nil:
		return "packages"
	}
	return "resolve"
}

var _ ports.CatalogClient = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

// PushResolveResponse scripts a successful resolve call.
func (m *MockClient) PushResolveResponse(groups []domain.ResolvedPackageGroup) {
	m.push(mockResponse{groups: groups})
}

// PushSearchResponse scripts a successful search call.
func (m *MockClient) PushSearchResponse(results domain.SearchResults) {
	m.push(mockResponse{search: &results})
}

// PushPackagesResponse scripts a successful package versions call.
func (m *MockClient) PushPackagesResponse(details domain.PackageDetails) {
	m.push(mockResponse{packages: &details})
}

// PushError scripts a failing call of any kind.
func (m *MockClient) PushError(err error) {
	m.push(mockResponse{err: err})
}

func (m *MockClient) push(resp mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// ResolveCalls reports how many times Resolve was invoked.
func (m *MockClient) ResolveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) pop(expected string) mockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		panic(fmt.Sprintf("MockClient: %s called with no scripted response", expected))
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	if next.err == nil && next.kind() != expected {
		panic(fmt.Sprintf("MockClient: expected %s response, found %s", expected, next.kind()))
	}
	return next
}

func (m *MockClient) Resolve(_ context.Context, _ []domain.PackageGroup) ([]domain.ResolvedPackageGroup, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	next := m.pop("resolve")
	if next.err != nil {
		return nil, next.err
	}
	return next.groups, nil
}

func (m *MockClient) Search(_ context.Context, _, _ string, _ int) (domain.SearchResults, error) {
	next := m.pop("search")
	if next.err != nil {
		return domain.SearchResults{}, next.err
	}
	return *next.search, nil
}

func (m *MockClient) PackageVersions(_ context.Context, _ string) (domain.PackageDetails, error) {
	next := m.pop("packages")
	if next.err != nil {
		return domain.PackageDetails{}, next.err
	}
	return *next.packages, nil
}
