package rhi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func newTestDevice(t *testing.T, opts headless.Options, cfg rhi.DeviceConfig) (*rhi.Device, *headless.Backend) {
	t.Helper()
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 320, 180
	}
	if cfg.CbvSrvUavHeapSize == 0 {
		cfg.CbvSrvUavHeapSize = 1024
	}
	if cfg.RtvHeapSize == 0 {
		cfg.RtvHeapSize = 8
	}
	if cfg.DsvHeapSize == 0 {
		cfg.DsvHeapSize = 4
	}
	backend := headless.New(opts)
	device, err := rhi.NewDevice(backend, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, device.Close())
	})
	return device, backend
}
