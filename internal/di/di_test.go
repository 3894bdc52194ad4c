package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/internal/cache"
	"github.com/aihub/flora-search/internal/config"
	"github.com/aihub/flora-search/internal/fetcher"
	"github.com/aihub/flora-search/internal/ingest"
	"github.com/aihub/flora-search/internal/search"
	"github.com/aihub/flora-search/internal/store"
)

func TestContainerBasicOperations(t *testing.T) {
	container := InitContainer()
	assert.Same(t, container, GetContainer())

	type TestService struct {
		Name string
	}
	require.NoError(t, Provide(func() *TestService { return &TestService{Name: "test"} }))
	assert.NoError(t, Invoke(func(svc *TestService) {
		assert.Equal(t, "test", svc.Name)
	}))
}

func TestCleanupRunsInReverse(t *testing.T) {
	var order []int
	c := &Cleanup{}
	c.Add(func() error { order = append(order, 1); return nil })
	c.Add(func() error { order = append(order, 2); return errors.New("second") })
	c.Add(func() error { order = append(order, 3); return nil })

	assert.EqualError(t, c.Run(), "second")
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, c.Run())
}

func TestRegisterProvidersWithLocalDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Index.Provider = "memory"
	cfg.Index.TextCollection = "flora_text"
	cfg.Index.ImageCollection = "flora_images"
	cfg.Embedding.TextProvider = "hashing"
	cfg.Embedding.Dimensions = 64
	cfg.Storage.Provider = "local"
	cfg.Cache.Provider = "none"

	container := InitContainer()
	require.NoError(t, RegisterProviders(container, cfg, zap.NewNop()))

	err := container.Invoke(func(st *store.Store, engine *search.Engine, rc cache.ResultCache, mirror fetcher.Mirror, events ingest.EventPublisher) {
		assert.NotNil(t, st)
		assert.NotNil(t, engine)
		assert.IsType(t, cache.NoopCache{}, rc)
		assert.Nil(t, mirror)
		assert.Nil(t, events)
		assert.Equal(t, "flora_text", st.Text.Name())
	})
	require.NoError(t, err)
}
