package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopePredicateFormat(t *testing.T) {
	s := Scope{TenantID: "tenant-a"}
	clause, arg := s.Predicate(2)
	require.Equal(t, "tenant_id = $2", clause)
	require.Equal(t, "tenant-a", arg)
}

func TestItoa(t *testing.T) {
	require.Equal(t, "0", itoa(0))
	require.Equal(t, "7", itoa(7))
	require.Equal(t, "42", itoa(42))
}
