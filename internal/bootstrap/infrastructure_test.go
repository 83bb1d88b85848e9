package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func withCollector(t *testing.T, infra *Infrastructure) {
	t.Helper()
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "boot"}, logging.NewNopLogger())
	require.NoError(t, err)
	infra.Collector = c
	infra.Metrics = prometheus.NewAppMetrics(c)
}

func TestDeps_AbsentServicesStayNil(t *testing.T) {
	infra := &Infrastructure{Config: testConfig(), Logger: logging.NewNopLogger()}
	deps := infra.Deps(pipeline.New(nil))

	assert.NotNil(t, deps.Analyzer)
	assert.Nil(t, deps.Repo)
	assert.Nil(t, deps.Index)
	assert.Nil(t, deps.Cache)
	assert.Nil(t, deps.Publisher)
	assert.Nil(t, deps.Graph)
	assert.Nil(t, deps.Archive)
	assert.Nil(t, deps.Metrics)
}

func TestOpenRedis_WiresCacheAndProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()

	infra := &Infrastructure{Config: cfg, Logger: logging.NewNopLogger()}
	require.NoError(t, infra.openRedis(context.Background()))
	defer infra.Close(context.Background())

	deps := infra.Deps(pipeline.New(nil))
	assert.NotNil(t, deps.Cache)

	checks := infra.HealthCheckers()
	require.Len(t, checks, 1)
	assert.Equal(t, "redis", checks[0].Name())
	assert.NoError(t, checks[0].Check(context.Background()))

	mr.Close()
	assert.Error(t, checks[0].Check(context.Background()))
}

func TestService_AnalyzesWithoutOptionalServices(t *testing.T) {
	infra := &Infrastructure{Config: testConfig(), Logger: logging.NewNopLogger()}
	withCollector(t, infra)

	svc, closer, err := infra.Service()
	require.NoError(t, err)
	defer closer.Close()

	a, err := svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{
		Abstract: "A randomized controlled phase III trial of metformin in 600 patients.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.DrugCompounds)
}

func TestObserveHealth_FansOut(t *testing.T) {
	infra := &Infrastructure{}
	withCollector(t, infra)

	var seen []string
	observe := infra.ObserveHealth(func(component string, up bool) {
		if !up {
			seen = append(seen, component)
		}
	})
	observe("postgres", true)
	observe("redis", false)
	assert.Equal(t, []string{"redis"}, seen)
}

func TestClose_ReverseOrder(t *testing.T) {
	infra := &Infrastructure{Logger: logging.NewNopLogger()}
	var order []int
	for n := 0; n < 3; n++ {
		n := n
		infra.addCloser(func(context.Context) error { order = append(order, n); return nil })
	}
	infra.Close(context.Background())
	infra.Close(context.Background())
	assert.Equal(t, []int{2, 1, 0}, order)
}
