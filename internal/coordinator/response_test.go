package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sessionhub/internal/models"
)

func TestToolchainRequest_Toolchain(t *testing.T) {
	var nilReq *ToolchainRequest
	tc, err := nilReq.Toolchain()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultToolchain(), tc)

	on := true
	tc, err = (&ToolchainRequest{Target: "nightly", WasmSupport: &on, Optimization: "DEBUG"}).Toolchain()
	require.NoError(t, err)
	assert.Equal(t, "nightly", tc.Target)
	assert.Equal(t, models.DefaultToolchain().Version, tc.Version)
	assert.Equal(t, models.OptimizationDebug, tc.Optimization)
	assert.True(t, tc.WasmSupport)

	_, err = (&ToolchainRequest{Optimization: "O3"}).Toolchain()
	assert.ErrorContains(t, err, "unknown optimization level")
}
