package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseError_Is(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPurchaseError(ResourceNameJournal, ErrJournalWrite, cause)

	assert.ErrorIs(t, err, ErrJournalWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "journal: journal write failure: connection reset", err.Error())
}

func TestPurchaseError_CauseIsSentinel(t *testing.T) {
	err := NewPurchaseError(ResourceNameStock, ErrInsufficientStock, ErrInsufficientStock)
	assert.Equal(t, "stock: insufficient stock", err.Error())
}

func TestResourceOf(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), NewPurchaseError(ResourceNameFunds, ErrInsufficientFunds, nil))

	resource, ok := ResourceOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ResourceNameFunds, resource)

	_, ok = ResourceOf(errors.New("plain"))
	assert.False(t, ok)
}
