package metrics

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const requestDurationMetric = "http_req_duration"

// ParseEventLog reads a k6 JSON event log and groups http_req_duration points
// by their url tag. Endpoints are returned in the order they first appear.
// Lines that are not valid JSON, are not request-duration points, or carry no
// url tag are skipped.
func ParseEventLog(r io.Reader) ([]EndpointMetric, error) {
	set := newEndpointSet()
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			parseEventLine(bytes.TrimSpace(line), set)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read event log")
		}
	}

	return set.metrics(), nil
}

func parseEventLine(line []byte, set *endpointSet) {
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return
	}

	event := gjson.ParseBytes(line)
	if event.Get("type").String() != "Point" || event.Get("metric").String() != requestDurationMetric {
		return
	}

	tags := event.Get("data.tags")
	url := tags.Get("url").String()
	if url == "" {
		return
	}

	var duration *float64
	if v := event.Get("data.value"); v.Exists() {
		f := v.Float()
		duration = &f
	}

	set.get(url).record(duration, isErrorStatus(tags.Get("status").String()))
}

// isErrorStatus reports whether a status tag starts with 4 or 5.
func isErrorStatus(status string) bool {
	return status != "" && (status[0] == '4' || status[0] == '5')
}

// ExtractEndpoints returns per-endpoint metrics from the event log at path.
// When the file does not exist, or holds no request-duration points, the
// script is scanned for literal URLs instead and those are reported with zero
// values.
func ExtractEndpoints(path, script string) ([]EndpointMetric, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return ScanScriptEndpoints(script), nil
	}
	if err != nil {
		return ScanScriptEndpoints(script), errors.Wrapf(err, "failed to open event log %s", path)
	}
	defer f.Close()

	endpoints, err := ParseEventLog(f)
	if err != nil {
		return ScanScriptEndpoints(script), err
	}
	if len(endpoints) == 0 {
		return ScanScriptEndpoints(script), nil
	}
	return endpoints, nil
}
