package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/catalog"
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestMockClient_ScriptedResponses(t *testing.T) {
	t.Parallel()

	mock := catalog.NewMockClient()
	mock.PushResolveResponse([]domain.ResolvedPackageGroup{{Name: "first"}})
	mock.PushError(zerr.New("scripted failure"))

	resolved, err := mock.Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "first", resolved[0].Name)

	_, err = mock.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 2, mock.ResolveCalls())
}

func TestMockClient_PanicsWithoutScript(t *testing.T) {
	t.Parallel()

	mock := catalog.NewMockClient()
	assert.Panics(t, func() {
		mock.Resolve(context.Background(), nil) //nolint:errcheck
	})
}

func TestMockClient_PanicsOnKindMismatch(t *testing.T) {
	t.Parallel()

	mock := catalog.NewMockClient()
	mock.PushSearchResponse(domain.SearchResults{})
	assert.Panics(t, func() {
		mock.Resolve(context.Background(), nil) //nolint:errcheck
	})
}
