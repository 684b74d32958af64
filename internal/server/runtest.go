package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wesleyorama2/k6lunge/internal/profile"
	"github.com/wesleyorama2/k6lunge/internal/runner"
)

// multipartOverhead is allowed on top of the upload limit for the other
// form fields and part headers.
const multipartOverhead = 64 << 10

var errUploadTooLarge = errors.New("uploaded script is too large")

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(data)
	}
	return nil
}

type runRequest struct {
	SelectedScriptID    flexString `json:"selectedScriptId"`
	SelectedEnvironment flexString `json:"selectedEnvironment"`
	SelectedApplication flexString `json:"selectedApplication"`
	Script              flexString `json:"script"`

	RampUpVUs        flexString `json:"rampUpVUs"`
	RampUpDuration   flexString `json:"rampUpDuration"`
	SteadyVUs        flexString `json:"steadyVUs"`
	SteadyDuration   flexString `json:"steadyDuration"`
	RampDownVUs      flexString `json:"rampDownVUs"`
	RampDownDuration flexString `json:"rampDownDuration"`

	uploaded []byte
}

type errorResponse struct {
	Message string   `json:"message"`
	Kind    string   `json:"kind,omitempty"`
	Error   string   `json:"error,omitempty"`
	Details string   `json:"details,omitempty"`
	Output  string   `json:"output,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// RunTest resolves the script, applies the load profile and dispatches the
// run. The script is taken from an uploaded file, a stored script reference
// or the inline script field, in that order.
func (h *Handler) RunTest(c echo.Context) error {
	req, err := h.readRunRequest(c)
	if err != nil {
		return h.badRequest(c, err)
	}

	p, err := req.profile()
	if err != nil {
		return h.badRequest(c, err)
	}

	res, err := h.dispatcher.Run(c.Request().Context(), req.source(), p)
	if err != nil {
		return h.runFailed(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) readRunRequest(c echo.Context) (*runRequest, error) {
	r := c.Request()

	if strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(io.LimitReader(r.Body, h.maxUploadBytes+multipartOverhead+1))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read request body")
		}
		if int64(len(body)) > h.maxUploadBytes+multipartOverhead {
			return nil, errUploadTooLarge
		}
		if err := profile.ValidateRequestJSON(body); err != nil {
			return nil, err
		}

		req := &runRequest{}
		if err := json.Unmarshal(body, req); err != nil {
			return nil, errors.Wrap(err, "invalid request body")
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(c.Response(), r.Body, h.maxUploadBytes+multipartOverhead)

	req := &runRequest{
		SelectedScriptID:    flexString(c.FormValue("selectedScriptId")),
		SelectedEnvironment: flexString(c.FormValue("selectedEnvironment")),
		SelectedApplication: flexString(c.FormValue("selectedApplication")),
		Script:              flexString(c.FormValue("script")),
		RampUpVUs:           flexString(c.FormValue("rampUpVUs")),
		RampUpDuration:      flexString(c.FormValue("rampUpDuration")),
		SteadyVUs:           flexString(c.FormValue("steadyVUs")),
		SteadyDuration:      flexString(c.FormValue("steadyDuration")),
		RampDownVUs:         flexString(c.FormValue("rampDownVUs")),
		RampDownDuration:    flexString(c.FormValue("rampDownDuration")),
	}

	uploaded, err := h.readUpload(c)
	if err != nil {
		return nil, err
	}
	req.uploaded = uploaded
	return req, nil
}

// readUpload returns the content of the "file" part, or nil if there is none.
func (h *Handler) readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errUploadTooLarge
		}
		return nil, nil
	}
	if fh.Size > h.maxUploadBytes {
		return nil, errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open uploaded script")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read uploaded script")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (r *runRequest) profile() (profile.LoadProfile, error) {
	var (
		p   profile.LoadProfile
		err error
	)
	if p.RampUp, err = profile.ParseStage(string(r.RampUpVUs), string(r.RampUpDuration)); err != nil {
		return p, errors.Wrap(err, "rampUp")
	}
	if p.Steady, err = profile.ParseStage(string(r.SteadyVUs), string(r.SteadyDuration)); err != nil {
		return p, errors.Wrap(err, "steady")
	}
	if p.RampDown, err = profile.ParseStage(string(r.RampDownVUs), string(r.RampDownDuration)); err != nil {
		return p, errors.Wrap(err, "rampDown")
	}
	return p, nil
}

func (r *runRequest) source() runner.ScriptSource {
	src := runner.ScriptSource{
		Uploaded: r.uploaded,
		Inline:   string(r.Script),
	}
	if r.SelectedScriptID != "" || r.SelectedEnvironment != "" || r.SelectedApplication != "" {
		src.Stored = &runner.StoredRef{
			Environment: string(r.SelectedEnvironment),
			Application: string(r.SelectedApplication),
			ID:          string(r.SelectedScriptID),
		}
	}
	return src
}

func (h *Handler) badRequest(c echo.Context, err error) error {
	resp := errorResponse{
		Message: "Invalid test request",
		Kind:    string(runner.KindInvalidProfile),
		Error:   err.Error(),
	}

	var verrs *profile.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs.Errors {
			resp.Fields = append(resp.Fields, e.Error())
		}
	}
	if errors.Is(err, errUploadTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, resp)
	}
	return c.JSON(http.StatusBadRequest, resp)
}

func (h *Handler) runFailed(c echo.Context, err error) error {
	re, ok := runner.AsError(err)
	if !ok {
		h.logger.Errorw("Unexpected run failure", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Message: "Internal error",
			Kind:    string(runner.KindInternal),
			Error:   err.Error(),
		})
	}

	resp := errorResponse{
		Message: re.Message,
		Kind:    string(re.Kind),
		Error:   re.Message,
		Details: re.Detail,
		Output:  re.Stdout,
	}
	if re.Stderr != "" {
		resp.Error = re.Stderr
	}

	h.logger.Warnw("Test run failed", "kind", re.Kind, "message", re.Message, "detail", re.Detail)
	return c.JSON(re.Kind.HTTPStatus(), resp)
}
