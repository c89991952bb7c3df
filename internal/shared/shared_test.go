package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAuditRefStable(t *testing.T) {
	a := AuditRef("change_request", "42")
	b := AuditRef("change_request", "42")
	require.Equal(t, a, b)
	require.NotEqual(t, uuid.Nil, a)

	other := AuditRef("change_request", "43")
	require.NotEqual(t, a, other)
}

func TestOccurredAtZeroBecomesNull(t *testing.T) {
	require.Nil(t, occurredAt(time.Time{}))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, at, occurredAt(at))
}

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 0, p.Offset())
}

func TestPaginationOffset(t *testing.T) {
	p := NewPagination(3, 10, 95)
	require.Equal(t, 20, p.Offset())
	require.Equal(t, 10, p.TotalPages)
}
