package report

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

type CrashReportRenderer struct{}

func New() Renderer {
	return &CrashReportRenderer{}
}

// Render lays out the report in fixed order: title, generation timestamp,
// vehicle section, crash section, vehicle-state section, and the last
// telemetry sample when a time series was supplied.
func (r *CrashReportRenderer) Render(ctx context.Context, input Input) ([]byte, error) {
	_ = ctx
	sub := input.Submission

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		WithCreationDate(input.GeneratedAt.UTC()).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Crash Report", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "Generated on: "+input.GeneratedAt.UTC().Format(timestampLayout), props.Text{
			Size:  10,
			Align: align.Right,
		}),
	)

	m.AddRow(10, sectionTitle("Vehicle Details"))
	m.AddRow(7, bodyLine("VIN Number: "+sub.VIN))
	if sub.ECUIdentifier != "" {
		m.AddRow(7, bodyLine("ECU Identifier: "+sub.ECUIdentifier))
	}
	if sub.DistanceTraveled != "" {
		m.AddRow(7, bodyLine("Distance Traveled: "+sub.DistanceTraveled))
	}

	m.AddRow(10, sectionTitle("Crash Details"))
	m.AddRow(7, bodyLine("Timestamp: "+input.GeneratedAt.UTC().Format(timestampLayout)))
	m.AddRow(7, bodyLine("Location: "+sub.Location))
	m.AddRow(7, bodyLine("Impact Severity: "+string(sub.Severity)))

	m.AddRow(10, sectionTitle("Vehicle State at Time of Incident"))
	m.AddRow(7, bodyLine(fmt.Sprintf("Throttle Position: %g%%", sub.ThrottlePosition)))
	m.AddRow(7, bodyLine(fmt.Sprintf("Brake Position: %g%%", sub.BrakePosition)))

	if last, ok := sub.LastTelemetry(); ok {
		m.AddRow(10, sectionTitle("Telemetry Data"))
		m.AddRow(7, bodyLine(fmt.Sprintf("Last Recorded Speed: %g km/h", last.Speed)))
		m.AddRow(7, bodyLine(fmt.Sprintf("Last Recorded Engine RPM: %g RPM", last.EngineRPM)))
	}

	m.AddRow(6, col.New(12))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render crash report: %w", err)
	}
	return canonicalize(doc.GetBytes(), input.GeneratedAt), nil
}

var (
	docDatePattern = regexp.MustCompile(`/(CreationDate|ModDate)\s*\(D:[^)]*\)`)
	fontIDPattern  = regexp.MustCompile(`/F[0-9a-f]{12,}`)
)

// canonicalize rewrites the bytes the PDF engine varies between runs: the
// document date entries, which it stamps from the wall clock, and generated
// font resource identifiers, which it randomizes. The report CID is derived
// from content, so the same input must yield the same bytes. Replacements
// preserve length, keeping cross-reference offsets valid.
func canonicalize(pdf []byte, generatedAt time.Time) []byte {
	stamp := generatedAt.UTC().Format("20060102150405")
	pdf = docDatePattern.ReplaceAllFunc(pdf, func(m []byte) []byte {
		out := append([]byte(nil), m...)
		start := bytes.IndexByte(out, ':') + 1
		for i := start; i < len(out)-1; i++ {
			if idx := i - start; idx < len(stamp) {
				out[i] = stamp[idx]
			} else {
				out[i] = '0'
			}
		}
		return out
	})

	names := map[string][]byte{}
	return fontIDPattern.ReplaceAllFunc(pdf, func(m []byte) []byte {
		if r, ok := names[string(m)]; ok {
			return r
		}
		r := []byte(fmt.Sprintf("/F%0*x", len(m)-2, len(names)+1))
		names[string(m)] = r
		return r
	})
}

func sectionTitle(title string) core.Col {
	return text.NewCol(12, title, props.Text{Size: 14, Style: fontstyle.Bold})
}

func bodyLine(line string) core.Col {
	return text.NewCol(12, line, props.Text{Size: 10})
}
