package alphatrak

import (
	"bytes"
	"encoding/json"
	"fmt"

	"alphatrak-observer/src/models"
)

// activityData is the ResponseData shape of the activity endpoint. Ranges
// arrive as numbers, numeric strings or null.
type activityData struct {
	PetActivity map[string]json.RawMessage `json:"PetActivity"`
	MinRange    any                        `json:"MinRange"`
	MaxRange    any                        `json:"MaxRange"`
}

// -----------------------------------------------------------------------------

// decodeActivity turns ResponseData into a payload. Unknown categories are
// kept; entries that are not objects are dropped.
func decodeActivity(raw json.RawMessage, success bool) (*models.MActivityPayload, error) {
	payload := &models.MActivityPayload{
		Success:    success,
		Categories: map[models.MCategory][]models.MEntry{},
	}
	if !hasPayload(raw) {
		return payload, nil
	}

	var data activityData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding activity data: %w", err)
	}
	payload.MinRange = rangeValue(data.MinRange)
	payload.MaxRange = rangeValue(data.MaxRange)
	payload.RawMinRange = data.MinRange
	payload.RawMaxRange = data.MaxRange

	for name, list := range data.PetActivity {
		entries, err := decodeEntries(list)
		if err != nil {
			continue
		}
		payload.Categories[models.MCategory(name)] = entries
	}
	return payload, nil
}

// decodeEntries reads one category list. Null yields an empty list and
// anything other than an array is an error.
func decodeEntries(list json.RawMessage) ([]models.MEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, err
	}
	entries := make([]models.MEntry, 0, len(items))
	for _, item := range items {
		if e, ok := decodeEntry(item); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// decodeEntry decodes an object and records its field order as sent.
func decodeEntry(item json.RawMessage) (models.MEntry, bool) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	order := make([]string, 0, len(fields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := tok.(string)
		if !ok {
			break
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			break
		}
		order = append(order, key)
	}
	return models.NewOrderedEntry(fields, order), true
}

func rangeValue(v any) *float64 {
	if v == nil {
		return nil
	}
	f, ok := models.AsFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// -----------------------------------------------------------------------------

// decodePets accepts either a bare list or an object wrapping one.
func decodePets(raw json.RawMessage) ([]models.MPetRecord, error) {
	if !hasPayload(raw) {
		return []models.MPetRecord{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding pet list: %w", err)
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		for _, key := range []string{"Pets", "PetList", "PetDetails", "Data"} {
			if list, ok := t[key].([]any); ok {
				items = list
				break
			}
		}
	}

	pets := make([]models.MPetRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			pets = append(pets, models.MPetRecord(obj))
		}
	}
	return pets, nil
}

// -----------------------------------------------------------------------------

var tokenKeys = []string{"AccessToken", "access_token", "Token", "token", "AuthToken"}
var userIDKeys = []string{"UserId", "UserID", "userId", "AccountId", "Id"}

// loginFields pulls token and user id out of a login body, looking inside
// ResponseData first and then at the top level.
func loginFields(body map[string]any) (string, *int64) {
	scopes := []map[string]any{}
	if inner, ok := body["ResponseData"].(map[string]any); ok {
		scopes = append(scopes, inner)
	}
	scopes = append(scopes, body)

	var token string
	var userID *int64
	for _, scope := range scopes {
		if token == "" {
			for _, key := range tokenKeys {
				if s, ok := scope[key].(string); ok && s != "" {
					token = s
					break
				}
			}
		}
		if userID == nil {
			for _, key := range userIDKeys {
				if id, ok := models.AsInt64(scope[key]); ok {
					userID = &id
					break
				}
			}
		}
	}
	return token, userID
}
