package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhvplatform/go-billing-reminder/internal/domain"
)

func TestDigestSweepWaitsForVerifyTime(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 8, 59, 0, 0, time.UTC))
	e.addTenant("acme", "5511900000000")
	e.addCustomer("acme", "late", day(2025, 3, 10))

	e.s.RunDigestSweep(context.Background())
	assert.Empty(t, e.gateway.sent)

	e.setClock(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))
	e.s.RunDigestSweep(context.Background())
	assert.Len(t, e.gateway.sent, 1)
}

func TestDigestSentOncePerDay(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC))
	e.addTenant("acme", "5511900000000")
	e.addCustomer("acme", "late", day(2025, 3, 10))

	e.s.RunDigestSweep(context.Background())
	e.s.RunDigestSweep(context.Background())
	e.s.RunDigestSweep(context.Background())
	assert.Len(t, e.gateway.sent, 1)

	// Next day it goes out again.
	e.setClock(time.Date(2025, 3, 16, 9, 30, 0, 0, time.UTC))
	e.s.RunDigestSweep(context.Background())
	assert.Len(t, e.gateway.sent, 2)
}

func TestDigestCounts(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC))
	tenant := e.addTenant("acme", "5511900000000")

	e.addCustomer("acme", "overdue-1", day(2025, 3, 10))
	e.addCustomer("acme", "overdue-2", day(2025, 3, 14))
	e.addCustomer("acme", "today", day(2025, 3, 15))
	e.addCustomer("acme", "in-3-days", day(2025, 3, 18))
	e.addCustomer("acme", "in-7-days", day(2025, 3, 22))
	e.addCustomer("acme", "in-8-days", day(2025, 3, 23))

	require.NoError(t, e.s.SendDigest(context.Background(), tenant))

	require.Len(t, e.gateway.sent, 1)
	msg := e.gateway.sent[0].message
	assert.Contains(t, msg, "overdue: 2")
	assert.Contains(t, msg, "expiring today: 1")
	assert.Contains(t, msg, "expiring in the next 7 days: 2")
	assert.Equal(t, tenant.NotifyPhone, e.gateway.sent[0].phone)
}

func TestDigestAllClear(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC))
	tenant := e.addTenant("acme", "5511900000000")
	e.addCustomer("acme", "far-out", day(2025, 6, 1))

	require.NoError(t, e.s.SendDigest(context.Background(), tenant))

	require.Len(t, e.gateway.sent, 1)
	assert.Contains(t, e.gateway.sent[0].message, "no expirations")
}

func TestDigestSkipsTenantsWithoutNotifyPhone(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC))
	e.addTenant("acme", "")
	e.addCustomer("acme", "late", day(2025, 3, 10))

	e.s.RunDigestSweep(context.Background())
	assert.Empty(t, e.gateway.sent)
}

func TestDigestLedgerRow(t *testing.T) {
	e := newTestEnv(time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC))
	tenant := e.addTenant("acme", "5511900000000")

	require.NoError(t, e.s.SendDigest(context.Background(), tenant))

	require.Len(t, e.deliveries.records, 1)
	record := e.deliveries.records[0]
	assert.Equal(t, domain.DeliveryDigest, record.Kind)
	assert.Equal(t, "2025-03-15", record.DayKey)
	assert.True(t, record.Success)
}
