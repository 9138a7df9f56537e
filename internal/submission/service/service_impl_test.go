package service

import (
	"testing"

	"github.com/crashchain/crashchain/internal/config"
	"github.com/crashchain/crashchain/internal/submission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newValidator(t *testing.T) domain.Validator {
	t.Helper()
	return New(Params{
		Log:   zap.NewNop(),
		Rules: config.NewStaticRulesHolder(config.DefaultValidationRules()),
	})
}

func validBody() domain.RawSubmission {
	return domain.RawSubmission{
		"vinNumber":        "1HGCM82633A004352",
		"location":         "Main St",
		"impactSeverity":   "high",
		"throttlePosition": "80",
		"brakePosition":    "40",
	}
}

func TestValidate_AcceptsCompleteSubmission(t *testing.T) {
	sub, verrs := newValidator(t).Validate(validBody())
	require.Nil(t, verrs)
	assert.Equal(t, "1HGCM82633A004352", sub.VIN)
	assert.Equal(t, domain.SeverityHigh, sub.Severity)
	assert.Equal(t, 80.0, sub.ThrottlePosition)
	assert.Equal(t, 40.0, sub.BrakePosition)
}

func TestValidate_ReportsEveryMissingField(t *testing.T) {
	_, verrs := newValidator(t).Validate(domain.RawSubmission{
		"vinNumber": "1HGCM82633A004352",
	})
	require.NotNil(t, verrs)
	assert.ElementsMatch(t,
		[]string{"location", "impactSeverity", "throttlePosition", "brakePosition"},
		verrs.Fields())
	for _, e := range verrs.Errors {
		assert.Equal(t, domain.CodeRequired, e.Code)
	}
}

func TestValidate_WhitespaceCountsAsMissing(t *testing.T) {
	body := validBody()
	body["location"] = "   "
	_, verrs := newValidator(t).Validate(body)
	require.NotNil(t, verrs)
	assert.Equal(t, []string{"location"}, verrs.Fields())
}

func TestValidate_ThrottleOutOfRange(t *testing.T) {
	body := validBody()
	body["throttlePosition"] = "150"
	_, verrs := newValidator(t).Validate(body)
	require.NotNil(t, verrs)
	require.Len(t, verrs.Errors, 1)
	assert.Equal(t, "throttlePosition", verrs.Errors[0].Field)
	assert.Equal(t, domain.CodeRange, verrs.Errors[0].Code)
}

func TestValidate_NonNumericBrake(t *testing.T) {
	body := validBody()
	body["brakePosition"] = "hard"
	_, verrs := newValidator(t).Validate(body)
	require.NotNil(t, verrs)
	assert.Equal(t, []string{"brakePosition"}, verrs.Fields())
}

func TestValidate_RejectsBadVIN(t *testing.T) {
	for _, vin := range []string{
		"1HGCM82633A00435",   // 16 chars
		"1HGCM82633A0043522", // 18 chars
		"IHGCM82633A004352",  // contains I
		"1HGCM82633A00435O",  // contains O
		"1HGCM82633A00435Q",  // contains Q
	} {
		body := validBody()
		body["vinNumber"] = vin
		_, verrs := newValidator(t).Validate(body)
		require.NotNil(t, verrs, "vin %q should be rejected", vin)
		assert.Equal(t, []string{"vinNumber"}, verrs.Fields())
	}
}

func TestValidate_SeverityCaseInsensitive(t *testing.T) {
	body := validBody()
	body["impactSeverity"] = "CRITICAL"
	sub, verrs := newValidator(t).Validate(body)
	require.Nil(t, verrs)
	assert.Equal(t, domain.SeverityCritical, sub.Severity)
}

func TestValidate_RejectsUnknownSeverity(t *testing.T) {
	body := validBody()
	body["impactSeverity"] = "catastrophic"
	_, verrs := newValidator(t).Validate(body)
	require.NotNil(t, verrs)
	assert.Equal(t, []string{"impactSeverity"}, verrs.Fields())
}

func TestValidate_ParsesTelemetry(t *testing.T) {
	body := validBody()
	body["telemetryData"] = `[{"speed": 62, "engineRpm": 2400}, {"speed": 0, "engineRpm": 900}]`
	sub, verrs := newValidator(t).Validate(body)
	require.Nil(t, verrs)
	require.Len(t, sub.Telemetry, 2)
	last, ok := sub.LastTelemetry()
	require.True(t, ok)
	assert.Equal(t, 0.0, last.Speed)
	assert.Equal(t, 900.0, last.EngineRPM)
}

func TestValidate_MalformedTelemetryInvalidatesSubmission(t *testing.T) {
	for _, payload := range []string{
		`{"speed": 62}`,            // not an array
		`[{"speed": 62}]`,          // missing engineRpm
		`[{"engineRpm": "fast"}]`,  // non-numeric
		`[{"speed": 1, "engineRpm`, // truncated
	} {
		body := validBody()
		body["telemetryData"] = payload
		_, verrs := newValidator(t).Validate(body)
		require.NotNil(t, verrs, "payload %q should be rejected", payload)
		assert.Equal(t, []string{"telemetryData"}, verrs.Fields())
	}
}

func TestValidate_RequiredFieldListIsConfigurable(t *testing.T) {
	rules := config.DefaultValidationRules()
	rules.RequiredFields = []string{"vinNumber", "location"}
	rules.NumericRanges = nil
	v := New(Params{Log: zap.NewNop(), Rules: config.NewStaticRulesHolder(rules)})

	_, verrs := v.Validate(domain.RawSubmission{
		"vinNumber":      "1HGCM82633A004352",
		"location":       "Main St",
		"impactSeverity": "low",
	})
	assert.Nil(t, verrs)
}
