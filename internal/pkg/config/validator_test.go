package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []struct {
		name     string
		schedule string
	}{
		{"every minute", "* * * * *"},
		{"every five minutes", "*/5 * * * *"},
		{"nightly reclaim", "30 3 * * *"},
		{"weekday mornings", "0 9 * * 1-5"},
		{"first of month", "0 0 1 * *"},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, ValidateCronSchedule(tc.schedule))
		})
	}

	invalid := []struct {
		name     string
		schedule string
	}{
		{"empty", ""},
		{"too few fields", "* * *"},
		{"too many fields", "* * * * * *"},
		{"minute out of range", "61 * * * *"},
		{"prose", "every minute"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, ValidateCronSchedule(tc.schedule))
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.NoError(t, ValidateTimezone("Asia/Tokyo"))
	assert.NoError(t, ValidateTimezone("America/New_York"))

	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Mars/Olympus_Mons"))
	assert.Error(t, ValidateTimezone("+09:00"), "UTC offsets are not IANA names")
}

func TestValidateDuration(t *testing.T) {
	min, max := 100*time.Millisecond, 1*time.Minute

	assert.NoError(t, ValidateDuration(2*time.Second, min, max))
	assert.NoError(t, ValidateDuration(min, min, max), "minimum is inclusive")
	assert.NoError(t, ValidateDuration(max, min, max), "maximum is inclusive")

	err := ValidateDuration(50*time.Millisecond, min, max)
	assert.ErrorContains(t, err, "below minimum")

	err = ValidateDuration(5*time.Minute, min, max)
	assert.ErrorContains(t, err, "exceeds maximum")

	err = ValidateDuration(time.Second, time.Minute, time.Second)
	assert.ErrorContains(t, err, "invalid range")
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(2, 1, 16))
	assert.NoError(t, ValidateIntRange(1, 1, 16), "minimum is inclusive")
	assert.NoError(t, ValidateIntRange(16, 1, 16), "maximum is inclusive")

	err := ValidateIntRange(0, 1, 16)
	assert.ErrorContains(t, err, "below minimum")

	err = ValidateIntRange(64, 1, 16)
	assert.ErrorContains(t, err, "exceeds maximum")

	err = ValidateIntRange(5, 16, 1)
	assert.ErrorContains(t, err, "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(15*time.Second))
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))

	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-5*time.Second))
}
