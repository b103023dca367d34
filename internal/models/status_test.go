package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	// Every canonical label maps to exactly one storage code and back
	for _, label := range CanonicalStatuses() {
		code, err := ToStorageCode(label)
		require.NoError(t, err)
		require.NotEmpty(t, code)

		back, err := FromStorageCode(code)
		require.NoError(t, err)
		assert.Equal(t, label, back)
	}
}

func TestStorageCodeRoundTrip(t *testing.T) {
	for _, code := range []string{"open", "in_progress", "closed"} {
		label, err := FromStorageCode(code)
		require.NoError(t, err)

		back, err := ToStorageCode(label)
		require.NoError(t, err)
		assert.Equal(t, code, back)
	}
}

func TestStatusTranslationRejectsUnknownValues(t *testing.T) {
	_, err := ToStorageCode(Status("Archived"))
	assert.Error(t, err)

	_, err = FromStorageCode("archived")
	assert.Error(t, err)

	_, err = FromStorageCode("")
	assert.Error(t, err)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusOpen.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusClosed.Valid())
	assert.False(t, Status("open").Valid()) // storage code, not a label
	assert.False(t, Status("").Valid())
}
