package api

import (
	"github.com/jiangjiax/goalify-client/internal/models"
)

// EmotionDTO is the wire shape of an emotion record, shared by the updates
// response and the push request body. Field names follow the server API.
type EmotionDTO struct {
	ID               string           `json:"id"`
	EmotionType      string           `json:"emotionType"`
	Intensity        int              `json:"intensity"`
	Trigger          string           `json:"trigger"`
	UnhealthyBeliefs string           `json:"unhealthyBeliefs"`
	HealthyEmotion   string           `json:"healthyEmotion"`
	CopingStrategies string           `json:"copingStrategies"`
	RecordDate       models.Timestamp `json:"recordDate"`
	LastModified     models.Timestamp `json:"lastModified"`
}

// Record converts the DTO into a store record, preserving the remote
// identifier and modification time verbatim.
func (d EmotionDTO) Record() *models.EmotionRecord {
	return &models.EmotionRecord{
		ID:               d.ID,
		EmotionType:      d.EmotionType,
		Intensity:        models.ParseIntensity(d.Intensity),
		Trigger:          d.Trigger,
		UnhealthyBeliefs: d.UnhealthyBeliefs,
		HealthyEmotion:   d.HealthyEmotion,
		CopingStrategies: d.CopingStrategies,
		RecordDate:       d.RecordDate.Time,
		LastModified:     d.LastModified.Time,
	}
}

// EmotionToDTO builds the wire shape from a store record.
func EmotionToDTO(e *models.EmotionRecord) EmotionDTO {
	return EmotionDTO{
		ID:               e.ID,
		EmotionType:      e.EmotionType,
		Intensity:        int(e.Intensity),
		Trigger:          e.Trigger,
		UnhealthyBeliefs: e.UnhealthyBeliefs,
		HealthyEmotion:   e.HealthyEmotion,
		CopingStrategies: e.CopingStrategies,
		RecordDate:       models.Timestamp{Time: e.RecordDate},
		LastModified:     models.Timestamp{Time: e.LastModified},
	}
}

// UpdatesResponse is the body of GET /api/v1/sync/updates.
type UpdatesResponse struct {
	Emotions []EmotionDTO `json:"emotions"`
}

// UserDTO is the profile payload inside GET /api/v1/user.
type UserDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Energy   int    `json:"energy"`
}

type userResponse struct {
	User UserDTO `json:"user"`
}

type energyResponse struct {
	Energy int `json:"energy"`
}

type errorResponse struct {
	Error string `json:"error"`
}
