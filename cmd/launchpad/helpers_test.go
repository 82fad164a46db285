package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

func TestExitCodeForCancelled(t *testing.T) {
	err := errs.New(errs.KindCancelled, "op", "", nil)
	require.Equal(t, ExitCancelled, exitCodeFor(err))
}

func TestExitCodeForGeneral(t *testing.T) {
	require.Equal(t, ExitGeneral, exitCodeFor(errors.New("boom")))
}
