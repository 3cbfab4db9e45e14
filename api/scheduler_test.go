package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsystem/coachpay/api"
	"github.com/dexsystem/coachpay/logs"
	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/payroll/store"
)

func TestSnapshotScheduler_CapturesOncePerMonth(t *testing.T) {
	ctx := context.Background()
	engine := payroll.NewEngine(store.NewTxMemory(),
		payroll.WithClock(payroll.FixedClock(now)),
		payroll.WithLocation(time.UTC),
		payroll.WithLogger(logs.Nop()),
	)
	s := api.NewSnapshotScheduler(engine, logs.Nop())

	assert.True(t, s.CheckNow(ctx))
	assert.False(t, s.CheckNow(ctx), "already pinned")

	_, ok, err := engine.GetSnapshot(ctx, engine.CurrentMonth())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapshotScheduler_StartRunsImmediately(t *testing.T) {
	ctx := context.Background()
	engine := payroll.NewEngine(store.NewTxMemory(),
		payroll.WithClock(payroll.FixedClock(now)),
		payroll.WithLocation(time.UTC),
		payroll.WithLogger(logs.Nop()),
	)
	s := api.NewSnapshotScheduler(engine, logs.Nop())
	s.CheckInterval = time.Hour

	s.Start()
	s.Start()
	t.Cleanup(s.Stop)

	assert.Eventually(t, func() bool {
		_, ok, err := engine.GetSnapshot(ctx, engine.CurrentMonth())
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestSnapshotScheduler_Disabled(t *testing.T) {
	engine := payroll.NewEngine(store.NewTxMemory(), payroll.WithLogger(logs.Nop()))
	s := api.NewSnapshotScheduler(engine, logs.Nop())
	s.Enabled = false

	s.Start()
	s.Stop()
}
