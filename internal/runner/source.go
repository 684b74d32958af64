package runner

import (
	"os"

	"github.com/pkg/errors"
)

// StoredRef points at a script in the script store.
type StoredRef struct {
	Environment string `json:"environment"`
	Application string `json:"application"`
	ID          string `json:"scriptId"`
}

func (r *StoredRef) complete() bool {
	return r != nil && r.Environment != "" && r.Application != "" && r.ID != ""
}

// ScriptSource holds the ways a caller can provide a script. Resolve picks
// the first one present, in order: uploaded file, stored reference, inline
// text.
type ScriptSource struct {
	Uploaded []byte
	Stored   *StoredRef
	Inline   string
}

// ScriptGetter reads a stored script. A missing script is reported with an
// error matching os.ErrNotExist.
type ScriptGetter interface {
	Get(environment, application, id string) (string, error)
}

// Resolve returns the script text selected by src. A complete stored
// reference that cannot be found fails the resolution; there is no fall
// through to the inline text.
func Resolve(src ScriptSource, scripts ScriptGetter) (string, error) {
	switch {
	case src.Uploaded != nil:
		return string(src.Uploaded), nil

	case src.Stored.complete():
		if scripts == nil {
			return "", newError(KindInternal, "No script store configured", nil)
		}
		text, err := scripts.Get(src.Stored.Environment, src.Stored.Application, src.Stored.ID)
		if errors.Is(err, os.ErrNotExist) {
			e := newError(KindScriptResolution, "Selected script not found", err)
			return "", e
		}
		if err != nil {
			return "", newError(KindInternal, "Failed to read selected script", err)
		}
		return text, nil

	case src.Inline != "":
		return src.Inline, nil

	default:
		return "", newError(KindScriptResolution, "No script provided", nil)
	}
}

// Label names the source Resolve picks: the stored script ID, "uploaded"
// or "inline".
func (src ScriptSource) Label() string {
	switch {
	case src.Uploaded != nil:
		return "uploaded"
	case src.Stored.complete():
		return src.Stored.ID
	default:
		return "inline"
	}
}
