package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"INR 20,000", "20000"},
		{"INR -20,000", "-20000"},
		{"  ₹ 1,234.50  ", "1234.5"},
	}
	for _, tc := range cases {
		d, err := ParseDecimal(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, d.String(), tc.in)
	}

	for _, bad := range []string{"", "   ", "INR", "-"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Office Rent", "rent"))
	assert.True(t, ContainsFold("MARKETING", "Market"))
	assert.False(t, ContainsFold("rent", "Office rent"))
	assert.False(t, ContainsFold("anything", " "))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"capex", "investing"}, NormalizeTags([]string{" Investing", "capex", "INVESTING", ""}))
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysUntil(today, time.Date(2026, time.March, 10, 0, 1, 0, 0, time.UTC)))
	assert.Equal(t, 3, DaysUntil(today, time.Date(2026, time.March, 13, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, DaysUntil(today, time.Date(2026, time.March, 9, 8, 0, 0, 0, time.UTC)))
}

func TestDaysUntil_AcrossDaylightSaving(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// clocks spring forward on 2026-03-08
	today := time.Date(2026, time.March, 7, 9, 0, 0, 0, newYork)
	assert.Equal(t, 3, DaysUntil(today, time.Date(2026, time.March, 10, 9, 0, 0, 0, newYork)))
	assert.Equal(t, -3, DaysUntil(time.Date(2026, time.March, 10, 9, 0, 0, 0, newYork), today))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "₹8,000.00", FormatAmount(decimal.NewFromInt(8000), "INR"))
	assert.Equal(t, "$12.35", FormatAmount(decimal.RequireFromString("12.345"), "USD"))
	assert.Equal(t, "XYZ 5.00", FormatAmount(decimal.NewFromInt(5), "XYZ"))
}

func TestWrapPersistence(t *testing.T) {
	assert.Nil(t, WrapPersistence("op", nil))

	validation := NewValidationError("amount", "must be positive")
	assert.Same(t, validation, WrapPersistence("op", validation))

	wrapped := WrapPersistence("insert ledger entries", errors.New("disk full"))
	var pe *PersistenceError
	require.ErrorAs(t, wrapped, &pe)
	assert.Equal(t, "insert ledger entries", pe.Op)
	assert.Equal(t, wrapped, WrapPersistence("outer", wrapped))

	assert.ErrorIs(t, NewNotFoundError("record", 7), ErrorRecordNotFound)
	assert.True(t, IsDomainError(&StateError{Entity: "record", From: "confirmed", To: "cancelled"}))
	assert.False(t, IsDomainError(wrapped))
}

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate("actor-9", "Priya", "member", []string{"wb-1"}, time.Hour)
	require.NoError(t, err)

	parsed, err := JwtValidate(token)
	require.NoError(t, err)
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, "actor-9", claim.Subject)
	assert.True(t, claim.CanAccessWorkbench("wb-1"))
	assert.False(t, claim.CanAccessWorkbench("wb-2"))

	_, err = JwtValidate(token + "x")
	assert.Error(t, err)
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Status string `json:"payment_status" binding:"required,oneof=pending partial completed"`
	}
	err := ValidateStruct(&input{Status: "later"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "payment_status", ve.Field)
	assert.Equal(t, "must be one of pending partial completed", ve.Message)
	assert.NoError(t, ValidateStruct(&input{Status: "partial"}))
}
