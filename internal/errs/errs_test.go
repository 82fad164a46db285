package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	base := errors.New("boom")
	e := New(KindFetchFailed, "registry.fetchArtifact", "sh.bun", base)

	assert.Equal(t, "registry.fetchArtifact: FetchFailed (sh.bun): boom", e.Error())
}

func TestUnwrap(t *testing.T) {
	base := errors.New("boom")
	e := New(KindIoError, "", "", base)

	assert.ErrorIs(t, e, base)
}

func TestIs(t *testing.T) {
	e := New(KindVersionConflict, "resolver.dedup", "X", nil)
	wrapped := fmt.Errorf("resolve failed: %w", e)

	assert.True(t, Is(wrapped, KindVersionConflict))
	assert.False(t, Is(wrapped, KindFetchFailed))
	assert.False(t, Is(errors.New("plain"), KindFetchFailed))
}

func TestKindOfFallsBackToIoError(t *testing.T) {
	assert.Equal(t, KindIoError, KindOf(errors.New("not ours")))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, KindStaleCache.Recoverable())
	assert.True(t, KindInconsistentStore.Recoverable())
	assert.False(t, KindFetchFailed.Recoverable())
}

func TestHintProvidesRemediation(t *testing.T) {
	e := New(KindCorruptArtifact, "store.insert", "sh.bun", nil)
	assert.Contains(t, Hint(e), "--force")

	assert.Equal(t, "", Hint(errors.New("unrelated")))
}
