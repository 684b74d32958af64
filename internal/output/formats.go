package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/k6lunge/internal/runner"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
	// FormatJUnit outputs in JUnit XML format (for CI/CD integration)
	FormatJUnit OutputFormat = "junit"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML, FormatJUnit:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.Errorf("unknown output format %q (text, json, yaml, junit)", s)
	}
}

// WriteResult renders res to w in the given format.
func WriteResult(w io.Writer, format OutputFormat, res *runner.RunResult, noColor bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(res), "failed to encode result")

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "failed to encode result")
		}
		return enc.Close()

	case FormatJUnit:
		out, err := xml.MarshalIndent(JUnitReport(res), "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode result")
		}
		_, err = fmt.Fprintf(w, "%s%s\n", xml.Header, out)
		return err

	default:
		NewConsole(w, noColor).PrintResult(res)
		return nil
	}
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
	SystemOut string          `xml:"system-out,omitempty"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitReport maps a local run onto one suite: a "thresholds" case that fails
// when k6 reported a threshold violation, and one case per endpoint that
// fails when the endpoint saw error responses. Cluster runs produce a single
// passing "submitted" case.
func JUnitReport(res *runner.RunResult) *JUnitTestSuites {
	suite := JUnitTestSuite{
		Name:      "k6lunge." + string(res.Mode),
		Time:      res.Duration().Seconds(),
		Timestamp: res.StartedAt.Format(time.RFC3339),
	}
	classname := "k6lunge." + res.RunID

	if res.Mode == runner.ModeCluster {
		suite.TestCases = append(suite.TestCases, JUnitTestCase{Name: "submitted " + res.JobID, Classname: classname})
	} else {
		thresholds := JUnitTestCase{Name: "thresholds", Classname: classname, Time: suite.Time}
		if res.ThresholdViolated {
			thresholds.Failure = &JUnitFailure{
				Message: res.Message,
				Type:    "ThresholdViolation",
				Content: res.Output,
			}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, thresholds)

		for _, e := range res.URLMetrics {
			tc := JUnitTestCase{
				Name:      e.Label,
				Classname: classname,
				Time:      float64(e.MeanDurationMs) / 1000,
			}
			if e.ErrorCount > 0 {
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%d of %d requests failed", e.ErrorCount, e.RequestsTotal),
					Type:    "RequestError",
				}
				suite.Failures++
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
	}

	suite.Tests = len(suite.TestCases)
	return &JUnitTestSuites{TestSuites: []JUnitTestSuite{suite}}
}
