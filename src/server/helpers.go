package server

import (
	"fmt"
	"strconv"
	"time"

	"alphatrak-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// toLatestData converts what the host hands to Broadcast into the message
// sent over the websocket.
func toLatestData(payload interface{}) (*models.MLatestData, bool) {
	switch v := payload.(type) {
	case *models.MLatestData:
		return v, v != nil
	case models.MLatestData:
		return &v, true
	case models.MCycleResult:
		return resultUpdate(v), true
	case *models.MCycleResult:
		if v == nil {
			return nil, false
		}
		return resultUpdate(*v), true
	}
	return nil, false
}

// -----------------------------------------------------------------------------

func resultUpdate(r models.MCycleResult) *models.MLatestData {
	return &models.MLatestData{
		Type:      "UPDATE",
		Results:   map[int64]models.MCycleResult{r.PetID: r},
		Timestamp: timestamp(r.At),
	}
}

// -----------------------------------------------------------------------------

func timestamp(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

// -----------------------------------------------------------------------------

// filterResults keeps the results of the given pets; an empty list keeps all.
// The returned map is always a copy.
func filterResults(results map[int64]models.MCycleResult, pets []int64) map[int64]models.MCycleResult {
	out := make(map[int64]models.MCycleResult, len(results))
	if len(pets) == 0 {
		for id, r := range results {
			out[id] = r
		}
		return out
	}
	for _, id := range pets {
		if r, ok := results[id]; ok {
			out[id] = r
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func parsePetID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pet id %q", raw)
	}
	return id, nil
}

// -----------------------------------------------------------------------------

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
