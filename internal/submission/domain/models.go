package domain

// Severity is the impact severity reported with a submission.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RawSubmission is the untyped key-value form body as received over HTTP.
type RawSubmission map[string]string

func (r RawSubmission) Get(field string) string {
	if r == nil {
		return ""
	}
	return r[field]
}

// TelemetrySample is one reading of the optional time-series telemetry.
type TelemetrySample struct {
	Speed     float64 `json:"speed"`
	EngineRPM float64 `json:"engineRpm"`
}

// Submission is a validated, normalized crash report. It lives for the
// duration of one pipeline run and is never persisted directly.
type Submission struct {
	VIN              string
	Location         string
	Severity         Severity
	ThrottlePosition float64
	BrakePosition    float64

	ECUIdentifier    string
	DistanceTraveled string

	Telemetry []TelemetrySample
	OBDExport string
}

// LastTelemetry returns the most recent telemetry sample, if any.
func (s Submission) LastTelemetry() (TelemetrySample, bool) {
	if len(s.Telemetry) == 0 {
		return TelemetrySample{}, false
	}
	return s.Telemetry[len(s.Telemetry)-1], true
}
