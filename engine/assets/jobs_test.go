package assets_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/assets"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := assets.NewJobSystem(0, 1)
	assert.ErrorIs(t, err, assets.ErrNoWorkers)
	_, err = assets.NewJobSystem(1, -1)
	assert.ErrorIs(t, err, assets.ErrNegativeChannelSize)
}

func TestJobSystemRunsEveryTask(t *testing.T) {
	js, err := assets.NewJobSystem(3, 2)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	for i := 0; i < 20; i++ {
		fail := i%4 == 0
		require.NoError(t, js.Submit(assets.JobTask{
			Name: "task",
			Run: func() error {
				if fail {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure:  func(error) { failed.Add(1) },
		}))
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(15), completed.Load())
	assert.Equal(t, int32(5), failed.Load())

	assert.ErrorIs(t, js.Submit(assets.JobTask{Run: func() error { return nil }}), assets.ErrJobSystemShutdown)
	assert.NoError(t, js.Shutdown())
}
