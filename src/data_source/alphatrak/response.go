package alphatrak

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"alphatrak-observer/src/helpers"
)

// envelope is the wrapper around every AlphaTRAK response.
type envelope struct {
	IsSuccess    bool            `json:"IsSuccess"`
	ResponseData json.RawMessage `json:"ResponseData"`
}

// responseView is what the interpretation rules look at.
type responseView struct {
	status  int
	parsed  bool
	success bool
	hasData bool
}

type outcome int

const (
	outcomeData outcome = iota
	outcomeAuth
	outcomeInvalid
	outcomeFailure
)

type responseRule struct {
	name string
	when func(v responseView) bool
	then outcome
}

// responseRules is evaluated top to bottom and the first match wins. 401
// beats everything; a data payload beats a bad status or a false flag.
var responseRules = []responseRule{
	{"unauthorized", func(v responseView) bool { return v.status == http.StatusUnauthorized }, outcomeAuth},
	{"unparseable body", func(v responseView) bool { return !v.parsed }, outcomeInvalid},
	{"non-200 with data", func(v responseView) bool { return v.status != http.StatusOK && v.hasData }, outcomeData},
	{"non-200 without data", func(v responseView) bool { return v.status != http.StatusOK }, outcomeFailure},
	{"unsuccessful with data", func(v responseView) bool { return !v.success && v.hasData }, outcomeData},
	{"unsuccessful without data", func(v responseView) bool { return !v.success }, outcomeFailure},
	{"success", func(responseView) bool { return true }, outcomeData},
}

// -----------------------------------------------------------------------------

func parseEnvelope(status int, body []byte) (responseView, envelope) {
	var env envelope
	view := responseView{status: status}
	if err := json.Unmarshal(body, &env); err == nil {
		view.parsed = true
		view.success = env.IsSuccess
		view.hasData = hasPayload(env.ResponseData)
	}
	return view, env
}

func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func matchRule(v responseView) responseRule {
	for _, r := range responseRules {
		if r.when(v) {
			return r
		}
	}
	// unreachable: the last rule always matches
	return responseRules[len(responseRules)-1]
}

// -----------------------------------------------------------------------------

// interpretResponse applies responseRules and returns ResponseData (possibly
// nil) or a taxonomy error.
func interpretResponse(status int, body []byte) (json.RawMessage, error) {
	view, env := parseEnvelope(status, body)
	rule := matchRule(view)

	switch rule.then {
	case outcomeAuth:
		return nil, helpers.NewAuthError("authentication failed", status, nil)
	case outcomeInvalid:
		if status != http.StatusOK {
			return nil, helpers.NewApiError("API request failed", status, nil)
		}
		return nil, helpers.NewApiError("invalid response", status, nil)
	case outcomeFailure:
		if status != http.StatusOK {
			return nil, helpers.NewApiError("API request failed", status, nil)
		}
		return nil, helpers.NewApiError("API returned unsuccessful response", status, nil)
	default:
		if !hasPayload(env.ResponseData) {
			return nil, nil
		}
		return env.ResponseData, nil
	}
}

// -----------------------------------------------------------------------------

// interpretLogin is stricter: any non-200 or IsSuccess=false is a failure.
func interpretLogin(status int, body []byte) (map[string]any, error) {
	if status == http.StatusUnauthorized {
		return nil, helpers.NewAuthError("invalid credentials", status, nil)
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, helpers.NewApiError("invalid login response", status, err)
	}
	success, _ := parsed["IsSuccess"].(bool)
	if status != http.StatusOK || !success {
		return nil, helpers.NewApiError(fmt.Sprintf("login rejected (IsSuccess=%v)", success), status, nil)
	}
	return parsed, nil
}
