package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	wrapped := Wrap(ErrDatabase, "query failed", stderrors.New("disk io"))
	assert.Equal(t, "[DATABASE_ERROR] query failed: disk io", wrapped.Error())
}

func TestCodeOfUnwrapsThroughLayers(t *testing.T) {
	base := New(ErrChecksumMismatch, "seal broken")
	outer := fmt.Errorf("restoring: %w", base)

	assert.Equal(t, ErrChecksumMismatch, CodeOf(outer))
	assert.True(t, Is(outer, ErrChecksumMismatch))
	assert.False(t, Is(outer, ErrValidation))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("anonymous")))
	assert.False(t, Is(stderrors.New("anonymous"), ErrInternal))
}

func TestTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(New(ErrNetworkUnavailable, "down")))
	assert.True(t, IsTransient(New(ErrRemoteUnavailable, "503")))
	assert.True(t, IsTransient(New(ErrSyncTimeout, "slow")))

	assert.False(t, IsTransient(New(ErrValidation, "bad")))
	assert.False(t, IsTransient(New(ErrChecksumMismatch, "tampered")))
	assert.False(t, IsTransient(nil))
}

func TestIntegrityClassification(t *testing.T) {
	assert.True(t, IsIntegrity(New(ErrChecksumMismatch, "tampered")))
	assert.True(t, IsIntegrity(New(ErrCorruptedBackup, "garbled")))
	assert.False(t, IsIntegrity(New(ErrNetworkUnavailable, "down")))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(ErrBackupFailed, "backup", cause)
	assert.True(t, stderrors.Is(err, cause))
}
