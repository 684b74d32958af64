package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile loads a load profile from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadFile(path string) (LoadProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadProfile{}, errors.Wrap(err, "failed to read profile file")
	}

	return Parse(data, path)
}

// Parse parses profile data. The format follows the extension of path and
// defaults to YAML.
func Parse(data []byte, path string) (LoadProfile, error) {
	var p LoadProfile

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return LoadProfile{}, errors.Wrap(err, "failed to parse JSON profile")
		}
	default:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return LoadProfile{}, errors.Wrap(err, "failed to parse YAML profile")
		}
	}

	if err := p.Validate(); err != nil {
		return LoadProfile{}, err
	}
	return p, nil
}

// ParseDurationString parses a duration string.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseVUs parses a VU count as submitted by a form. Blank input means unset.
func ParseVUs(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid VU count: %s", s)
	}
	return &n, nil
}

// ParseStage builds a stage from its raw string fields.
func ParseStage(vus, duration string) (Stage, error) {
	n, err := ParseVUs(vus)
	if err != nil {
		return Stage{}, err
	}
	return Stage{VUs: n, Duration: strings.TrimSpace(duration)}, nil
}

// ParseStages parses stages from the CLI format "30s:10,2m:10,30s:0".
//
// One stage is taken as steady load, two as ramp-up then steady, three as
// ramp-up, steady and ramp-down.
func ParseStages(stagesStr string) (LoadProfile, error) {
	var stages []Stage

	parts := strings.Split(stagesStr, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return LoadProfile{}, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		durationStr := part[:colonIdx]
		targetStr := part[colonIdx+1:]

		if _, err := ParseDurationString(durationStr); err != nil {
			return LoadProfile{}, fmt.Errorf("stage %d: invalid duration '%s': %w", i+1, durationStr, err)
		}

		target, err := strconv.Atoi(targetStr)
		if err != nil {
			return LoadProfile{}, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, targetStr, err)
		}

		stages = append(stages, Stage{Duration: durationStr, VUs: VUs(target)})
	}

	switch len(stages) {
	case 0:
		return LoadProfile{}, fmt.Errorf("at least one stage is required")
	case 1:
		return LoadProfile{Steady: stages[0]}, nil
	case 2:
		return LoadProfile{RampUp: stages[0], Steady: stages[1]}, nil
	case 3:
		return LoadProfile{RampUp: stages[0], Steady: stages[1], RampDown: stages[2]}, nil
	default:
		return LoadProfile{}, fmt.Errorf("at most three stages are supported, got %d", len(stages))
	}
}
