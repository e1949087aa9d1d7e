package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserveQuery(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	ok := QueryTotalCounter.WithLabelValues(KindByPK, ResultOK)
	failed := QueryTotalCounter.WithLabelValues(KindByPK, ResultErr)
	before, err := ReadCounter(ok)
	require.NoError(t, err)
	beforeErr, err := ReadCounter(failed)
	require.NoError(t, err)

	ObserveQuery(KindByPK, time.Now(), nil)
	ObserveQuery(KindByPK, time.Now(), nil)
	ObserveQuery(KindByPK, time.Now(), errors.New("ORA-00942"))

	after, err := ReadCounter(ok)
	require.NoError(t, err)
	require.Equal(t, before+2, after)
	afterErr, err := ReadCounter(failed)
	require.NoError(t, err)
	require.Equal(t, beforeErr+1, afterErr)
}

func TestObserveCatalog(t *testing.T) {
	hits, err := ReadCounter(CatalogLookupCounter.WithLabelValues("hit"))
	require.NoError(t, err)
	ObserveCatalog(true)
	ObserveCatalog(false)
	after, err := ReadCounter(CatalogLookupCounter.WithLabelValues("hit"))
	require.NoError(t, err)
	require.Equal(t, hits+1, after)
}

func TestPoolGauge(t *testing.T) {
	PoolInUseGauge.Set(3)
	v, err := ReadGauge(PoolInUseGauge)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}
