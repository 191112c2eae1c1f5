// model.go this code defines the data model for the application
package datastore

import (
	"encoding/json"
	"time"
)

// User represents an account. Accounts are created on registration and are
// never hard-deleted; blocking is expressed through the role id.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	DisplayName  string
	RoleID       int `gorm:"index:idx_users_role"`
	FirstName    string
	LastName     string
	LevelID      int // self-reported proficiency, 1-3
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignDefinition is a canonical catalog entry for one sign (the legacy
// video_example collection). Admin-curated; read by contributors when
// choosing what to record.
type SignDefinition struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index:idx_signs_name"`
	TypeID    int
	Type      string // Caracter, Palabra or Frases
	Meaning   string
	Reference string // source URL for the sign
	VideoPath string // example clip download URL
	Status    string `gorm:"index:idx_signs_status"` // activo or inactivo
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Submission links a contributor-recorded clip to a sign definition (the
// legacy sign_data collection). Verified is one-way: the datastore exposes
// no operation that resets it to false once set.
type Submission struct {
	ID          uint   `gorm:"primaryKey"`
	Label       string `gorm:"index:idx_submissions_label_verified"`
	SignID      uint   `gorm:"index:idx_submissions_sign"`
	UserID      uint   `gorm:"index:idx_submissions_user"`
	UserLevelID int    // contributor proficiency at submission time
	Type        string
	VideoPath   string // clip download URL
	Verified    bool   `gorm:"index:idx_submissions_label_verified"`
	CreatedAt   time.Time
}

// Evaluation records one run of the external recognition model against an
// uploaded clip (the legacy evaluates_sign collection). Append-only.
type Evaluation struct {
	ID            uint `gorm:"primaryKey"`
	Label         string
	SubmissionID  uint `gorm:"index:idx_evaluations_submission"`
	VideoPath     string
	SignID        uint
	SignName      string
	SignType      string
	UserID        uint `gorm:"index:idx_evaluations_user"`
	UserLevelID   int
	TypeExtract   string // keypoint extraction mode sent to the model
	Model         string
	Prediction    string
	Probabilities string `gorm:"type:text"` // JSON-encoded []float64
	EvaluatedAt   time.Time
}

// SetProbabilities serializes the model's probability vector for storage.
func (e *Evaluation) SetProbabilities(probs []float64) error {
	if probs == nil {
		e.Probabilities = ""
		return nil
	}
	data, err := json.Marshal(probs)
	if err != nil {
		return err
	}
	e.Probabilities = string(data)
	return nil
}

// GetProbabilities decodes the stored probability vector.
func (e *Evaluation) GetProbabilities() ([]float64, error) {
	if e.Probabilities == "" {
		return nil, nil
	}
	var probs []float64
	if err := json.Unmarshal([]byte(e.Probabilities), &probs); err != nil {
		return nil, err
	}
	return probs, nil
}

// SurveyResponse holds one fixed five-question opinion questionnaire
// response (the legacy user_opinion_app collection). Append-only.
type SurveyResponse struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index:idx_surveys_user"`
	Answer1   string
	Answer2   string
	Answer3   string
	Answer4   string
	Answer5   string
	CreatedAt time.Time
}
