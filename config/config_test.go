package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsNonPositiveTimeouts(t *testing.T) {
	cfg := Default()
	cfg.StageTimeout = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidStageTimeout)

	cfg = Default()
	cfg.UnauthorisedTimeout = -1
	require.ErrorIs(t, cfg.Validate(), ErrInvalidUnauthorisedTimeout)
}

func TestValidate_RejectsNoEnabledSchemes(t *testing.T) {
	cfg := Default()
	cfg.EnabledSchemes = nil
	require.ErrorIs(t, cfg.Validate(), ErrNoSchemesEnabled)
}
