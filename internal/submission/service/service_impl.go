package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crashchain/crashchain/internal/config"
	"github.com/crashchain/crashchain/internal/submission/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// vinPattern is the 17-character VIN alphabet, excluding I, O and Q.
var vinPattern = regexp.MustCompile(`(?i)^[A-HJ-NPR-Z0-9]{17}$`)

type Params struct {
	fx.In

	Log   *zap.Logger
	Rules *config.RulesHolder
}

type Service struct {
	log   *zap.Logger
	rules *config.RulesHolder
}

func New(p Params) domain.Validator {
	return &Service{
		log:   p.Log.Named("submission.validator"),
		rules: p.Rules,
	}
}

// Validate checks the raw body against the configured rule set and returns
// either a normalized Submission or the complete list of violations.
func (s *Service) Validate(raw domain.RawSubmission) (domain.Submission, *domain.ValidationErrors) {
	rules := s.rules.Get()
	verrs := &domain.ValidationErrors{}

	for _, field := range rules.RequiredFields {
		if strings.TrimSpace(raw.Get(field)) == "" {
			verrs.Add(field, domain.CodeRequired, fmt.Sprintf("%s is required", field))
		}
	}
	// Missing fields make the remaining checks meaningless noise.
	if len(verrs.Errors) > 0 {
		s.log.Warn("submission rejected", zap.Strings("missing_fields", verrs.Fields()))
		return domain.Submission{}, verrs
	}

	sub := domain.Submission{
		VIN:              strings.ToUpper(strings.TrimSpace(raw.Get("vinNumber"))),
		Location:         strings.TrimSpace(raw.Get("location")),
		ECUIdentifier:    strings.TrimSpace(raw.Get("ecuIdentifier")),
		DistanceTraveled: strings.TrimSpace(raw.Get("distanceTraveled")),
		OBDExport:        raw.Get("obdData"),
	}

	if !vinPattern.MatchString(sub.VIN) {
		verrs.Add("vinNumber", domain.CodeInvalid, "invalid VIN number format")
	}

	severity := strings.ToLower(strings.TrimSpace(raw.Get("impactSeverity")))
	if containsFold(rules.SeverityLevels, severity) {
		sub.Severity = domain.Severity(severity)
	} else {
		verrs.Add("impactSeverity", domain.CodeInvalid, "invalid impact severity level")
	}

	numeric := map[string]*float64{
		"throttlePosition": &sub.ThrottlePosition,
		"brakePosition":    &sub.BrakePosition,
	}
	for _, r := range rules.NumericRanges {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw.Get(r.Field)), 64)
		if err != nil || value < r.Min || value > r.Max {
			verrs.Add(r.Field, domain.CodeRange,
				fmt.Sprintf("%s must be a number between %g and %g", r.Field, r.Min, r.Max))
			continue
		}
		if dst, ok := numeric[r.Field]; ok {
			*dst = value
		}
	}

	if telemetry := strings.TrimSpace(raw.Get("telemetryData")); telemetry != "" {
		samples, err := parseTelemetry(telemetry)
		if err != nil {
			verrs.Add("telemetryData", domain.CodeInvalid, "invalid telemetry data format")
		} else {
			sub.Telemetry = samples
		}
	}

	if len(verrs.Errors) > 0 {
		s.log.Warn("submission rejected", zap.Strings("invalid_fields", verrs.Fields()))
		return domain.Submission{}, verrs
	}
	return sub, nil
}

func parseTelemetry(raw string) ([]domain.TelemetrySample, error) {
	var entries []map[string]json.Number
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}

	samples := make([]domain.TelemetrySample, 0, len(entries))
	for _, entry := range entries {
		speed, sok := entry["speed"]
		rpm, rok := entry["engineRpm"]
		if !sok || !rok {
			return nil, fmt.Errorf("telemetry entry missing speed or engineRpm")
		}
		speedVal, err := speed.Float64()
		if err != nil {
			return nil, err
		}
		rpmVal, err := rpm.Float64()
		if err != nil {
			return nil, err
		}
		samples = append(samples, domain.TelemetrySample{Speed: speedVal, EngineRPM: rpmVal})
	}
	return samples, nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
