package alphatrak

import (
	"encoding/json"
	"testing"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActivity(t *testing.T) {
	raw := json.RawMessage(`{
		"MinRange": "70",
		"MaxRange": 180,
		"PetActivity": {
			"BloodGlucose": [{"GlucoseLevel": 110, "GlucoseEntryDateTime": "2024-01-01T08:00:00"}, "junk"],
			"Insulin": null,
			"SignsOfillness": []
		}
	}`)

	p, err := decodeActivity(raw, true)
	require.NoError(t, err)
	assert.True(t, p.Success)
	require.NotNil(t, p.MinRange)
	require.NotNil(t, p.MaxRange)
	assert.Equal(t, 70.0, *p.MinRange)
	assert.Equal(t, 180.0, *p.MaxRange)
	assert.Equal(t, "70", p.RawMinRange)
	assert.Equal(t, 180.0, p.RawMaxRange)

	glucose := p.Entries(models.CategoryBloodGlucose)
	require.Len(t, glucose, 1)
	level, ok := glucose[0].Float(models.FieldGlucoseLevel)
	assert.True(t, ok)
	assert.Equal(t, 110.0, level)

	assert.Empty(t, p.Entries(models.CategoryInsulin))
	assert.NotNil(t, p.Categories[models.CategorySignsOfIllness])
}

func TestDecodeActivity_KeepsFieldOrder(t *testing.T) {
	raw := json.RawMessage(`{
		"MinRange": "n/a",
		"PetActivity": {
			"BloodGlucose": [
				{"GlucoseEntryDateTime": "2024-01-02T08:00:00", "GlucoseLevel": 120, "CreatedEntryDateTime": "2023-01-01T00:00:00"},
				{"GlucoseEntryDateTime": "2024-01-01T08:00:00", "GlucoseLevel": 90, "CreatedEntryDateTime": "2025-01-01T00:00:00"}
			]
		}
	}`)

	p, err := decodeActivity(raw, true)
	require.NoError(t, err)
	assert.Nil(t, p.MinRange)
	assert.Equal(t, "n/a", p.RawMinRange)

	glucose := p.Entries(models.CategoryBloodGlucose)
	require.Len(t, glucose, 2)
	assert.Equal(t, []string{"GlucoseEntryDateTime", "GlucoseLevel", "CreatedEntryDateTime"}, glucose[0].Keys())
	assert.Equal(t, "2024-01-02T08:00:00", analysis.ExtractDatetime(glucose[0]))

	latest := analysis.LatestPerCategory(p)[models.CategoryBloodGlucose]
	level, _ := latest.Float(models.FieldGlucoseLevel)
	assert.Equal(t, 120.0, level)
	assert.Equal(t, "n/a", latest[models.FieldMinRange])

	out, err := json.Marshal(glucose[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"GlucoseEntryDateTime":"2024-01-02T08:00:00","GlucoseLevel":120,"CreatedEntryDateTime":"2023-01-01T00:00:00"}`, string(out))
}

func TestDecodeActivity_NullRangesAndData(t *testing.T) {
	p, err := decodeActivity(json.RawMessage(`{"MinRange":null,"PetActivity":{}}`), false)
	require.NoError(t, err)
	assert.Nil(t, p.MinRange)
	assert.Nil(t, p.MaxRange)

	p, err = decodeActivity(nil, true)
	require.NoError(t, err)
	assert.Empty(t, p.Categories)
}

func TestDecodePets(t *testing.T) {
	pets, err := decodePets(json.RawMessage(`[{"PetId": 7, "PetName": "Rex"}, 3]`))
	require.NoError(t, err)
	require.Len(t, pets, 1)
	id, ok := pets[0].ID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "Rex", pets[0].Name())

	pets, err = decodePets(json.RawMessage(`{"PetList": [{"Id": 9}]}`))
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "Pet 9", pets[0].Name())
}

func TestLoginFields(t *testing.T) {
	token, userID := loginFields(map[string]any{
		"IsSuccess":    true,
		"ResponseData": map[string]any{"AccessToken": "abc", "UserId": float64(42)},
	})
	assert.Equal(t, "abc", token)
	require.NotNil(t, userID)
	assert.Equal(t, int64(42), *userID)

	token, userID = loginFields(map[string]any{"token": "top", "UserId": "12"})
	assert.Equal(t, "top", token)
	require.NotNil(t, userID)
	assert.Equal(t, int64(12), *userID)

	token, userID = loginFields(map[string]any{"IsSuccess": true})
	assert.Empty(t, token)
	assert.Nil(t, userID)
}
