package rhi

import (
	"errors"

	"github.com/spaghettifunk/aurora/engine/containers"
)

var (
	ErrHeapExhausted      = errors.New("descriptor heap exhausted")
	ErrEmptyInitialData   = errors.New("buffer requires initial data")
	ErrNotUpdatable       = errors.New("buffer is not cpu updatable")
	ErrUpdateOutOfRange   = errors.New("update exceeds buffer size")
	ErrInvalidIndex       = containers.ErrInvalidIndex
	ErrStaleIndex         = containers.ErrStaleIndex
	ErrMissingShaderStage = errors.New("missing shader stage")
	ErrDeviceLost         = errors.New("device lost")
	ErrUploadDuringFrame  = errors.New("synchronous upload requested during frame recording")
	ErrCommandListClosed  = errors.New("command list is closed")
	ErrFrameInProgress    = errors.New("frame already started")
	ErrNoFrameInProgress  = errors.New("no frame in progress")
	ErrUsageMismatch      = errors.New("texture usage does not match")
)
