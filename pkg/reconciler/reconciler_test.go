package reconciler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartWithEmptyScheduleSkipsWithoutError(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Start(""))
}

func TestStartRegistersValidSchedule(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Start("@every 1h"))
	r.Stop()
}
