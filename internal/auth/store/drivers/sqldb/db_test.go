package sqldb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDollar(t *testing.T) {
	require.Equal(t, "SELECT 1", Dollar("SELECT 1"))
	require.Equal(t,
		"UPDATE otps SET used_at = $1 WHERE id = $2 AND used_at IS NULL",
		Dollar("UPDATE otps SET used_at = ? WHERE id = ? AND used_at IS NULL"))
	require.Equal(t, "x", Question("x"))
}
