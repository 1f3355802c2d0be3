package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactlyOneWinner(t *testing.T) {
	assert.Equal(t, statusPass, exactlyOneWinner([]int{http.StatusConflict, http.StatusOK, http.StatusConflict}).Status)
	assert.Equal(t, statusFail, exactlyOneWinner([]int{http.StatusOK, http.StatusOK}).Status)
	assert.Equal(t, statusFail, exactlyOneWinner([]int{http.StatusOK, http.StatusInternalServerError}).Status)
	assert.Equal(t, statusFail, exactlyOneWinner([]int{http.StatusConflict, http.StatusConflict}).Status)
}

func TestExtractTables_FromEmbeddedMigrations(t *testing.T) {
	tables, err := extractTables()
	require.NoError(t, err)
	assert.Contains(t, tables, "bookings")
	assert.Contains(t, tables, "booking_events")
	assert.Contains(t, tables, "provider_offerings")
}
