// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/colsign/colsign-go/internal/conf"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrSubmissionVerified is returned when deletion is attempted on a
// submission that has already been verified.
var ErrSubmissionVerified = errors.New("submission is verified and cannot be deleted")

// ErrSignInUse is returned when deletion is attempted on a sign definition
// that still has submissions referencing it.
var ErrSignInUse = errors.New("sign has submissions referencing it")

// Interface abstracts the underlying database implementation and defines the
// operations available to the rest of the application. Note that verification
// is deliberately one-way: there is no operation that clears the verified
// flag of a submission.
type Interface interface {
	Open() error
	Close() error
	// users
	CreateUser(user *User) error
	GetUser(id string) (User, error)
	GetUserByEmail(email string) (User, error)
	UpdateUserProfile(id string, firstName, lastName string, levelID int) (User, error)
	UpdateUserRole(id string, roleID int) (User, error)
	// sign catalog
	CreateSign(sign *SignDefinition) error
	GetSign(id string) (SignDefinition, error)
	GetSignByName(name string) (SignDefinition, error)
	GetActiveSigns() ([]SignDefinition, error)
	GetAllSigns() ([]SignDefinition, error)
	UpdateSign(sign *SignDefinition) error
	DeleteSign(id string) error
	CountSubmissionsForSign(signID uint) (int64, error)
	// submissions
	SaveSubmission(sub *Submission) error
	GetSubmission(id string) (Submission, error)
	SearchUnverified(label string, afterID uint, limit int) ([]Submission, error)
	VerifySubmission(id string) error
	DeleteSubmission(id string) error
	// evaluations
	SaveEvaluation(eval *Evaluation) error
	GetEvaluations(limit, offset int) ([]Evaluation, error)
	GetEvaluationsForSubmission(submissionID uint) ([]Evaluation, error)
	// surveys
	SaveSurveyResponse(resp *SurveyResponse) error
	GetSurveyResponses(limit, offset int) ([]SurveyResponse, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// CreateUser inserts a new user record into the database.
func (ds *DataStore) CreateUser(user *User) error {
	if err := ds.DB.Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by its ID from the database.
func (ds *DataStore) GetUser(id string) (User, error) {
	userID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return User{}, fmt.Errorf("converting ID to integer: %w", err)
	}

	var user User
	if err := ds.DB.First(&user, userID).Error; err != nil {
		return User{}, fmt.Errorf("getting user with ID %d: %w", userID, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by its email address.
func (ds *DataStore) GetUserByEmail(email string) (User, error) {
	var user User
	if err := ds.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return User{}, fmt.Errorf("getting user with email %s: %w", email, err)
	}
	return user, nil
}

// UpdateUserProfile updates the editable profile fields of a user and
// returns the updated record.
func (ds *DataStore) UpdateUserProfile(id string, firstName, lastName string, levelID int) (User, error) {
	userID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return User{}, fmt.Errorf("converting ID to integer: %w", err)
	}

	fields := map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"level_id":   levelID,
	}
	result := ds.DB.Model(&User{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		return User{}, fmt.Errorf("updating profile for user ID %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL reports rows changed, not rows matched, so an update to the
		// same values lands here. Only a missing row is a not-found.
		var count int64
		if err := ds.DB.Model(&User{}).Where("id = ?", userID).Count(&count).Error; err == nil && count == 0 {
			return User{}, fmt.Errorf("updating profile for user ID %d: %w", userID, ErrNotFound)
		}
	}

	var user User
	if err := ds.DB.First(&user, userID).Error; err != nil {
		return User{}, fmt.Errorf("getting user with ID %d: %w", userID, err)
	}
	return user, nil
}

// UpdateUserRole changes the role of a user and returns the updated record.
func (ds *DataStore) UpdateUserRole(id string, roleID int) (User, error) {
	userID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return User{}, fmt.Errorf("converting ID to integer: %w", err)
	}

	result := ds.DB.Model(&User{}).Where("id = ?", userID).Update("role_id", roleID)
	if result.Error != nil {
		return User{}, fmt.Errorf("updating role for user ID %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := ds.DB.Model(&User{}).Where("id = ?", userID).Count(&count).Error; err == nil && count == 0 {
			return User{}, fmt.Errorf("updating role for user ID %d: %w", userID, ErrNotFound)
		}
	}

	var user User
	if err := ds.DB.First(&user, userID).Error; err != nil {
		return User{}, fmt.Errorf("getting user with ID %d: %w", userID, err)
	}
	return user, nil
}

// CreateSign inserts a new sign definition into the catalog.
func (ds *DataStore) CreateSign(sign *SignDefinition) error {
	if err := ds.DB.Create(sign).Error; err != nil {
		return fmt.Errorf("creating sign: %w", err)
	}
	return nil
}

// GetSign retrieves a sign definition by its ID.
func (ds *DataStore) GetSign(id string) (SignDefinition, error) {
	signID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return SignDefinition{}, fmt.Errorf("converting ID to integer: %w", err)
	}

	var sign SignDefinition
	if err := ds.DB.First(&sign, signID).Error; err != nil {
		return SignDefinition{}, fmt.Errorf("getting sign with ID %d: %w", signID, err)
	}
	return sign, nil
}

// GetSignByName retrieves the sign definition whose name matches exactly.
func (ds *DataStore) GetSignByName(name string) (SignDefinition, error) {
	var sign SignDefinition
	if err := ds.DB.Where("name = ?", name).First(&sign).Error; err != nil {
		return SignDefinition{}, fmt.Errorf("getting sign with name %s: %w", name, err)
	}
	return sign, nil
}

// GetActiveSigns retrieves all catalog entries with active status, ordered
// by name for stable listings.
func (ds *DataStore) GetActiveSigns() ([]SignDefinition, error) {
	var signs []SignDefinition
	err := ds.DB.Where("status = ?", conf.SignStatusActive).
		Order("name ASC").
		Find(&signs).Error
	if err != nil {
		return nil, fmt.Errorf("error getting active signs: %w", err)
	}
	return signs, nil
}

// GetAllSigns retrieves the full catalog regardless of status.
func (ds *DataStore) GetAllSigns() ([]SignDefinition, error) {
	var signs []SignDefinition
	if result := ds.DB.Order("name ASC").Find(&signs); result.Error != nil {
		return nil, fmt.Errorf("error getting all signs: %w", result.Error)
	}
	return signs, nil
}

// UpdateSign saves the modified fields of an existing sign definition.
func (ds *DataStore) UpdateSign(sign *SignDefinition) error {
	result := ds.DB.Model(&SignDefinition{}).Where("id = ?", sign.ID).Updates(map[string]any{
		"name":       sign.Name,
		"type_id":    sign.TypeID,
		"type":       sign.Type,
		"meaning":    sign.Meaning,
		"reference":  sign.Reference,
		"video_path": sign.VideoPath,
		"status":     sign.Status,
	})
	if result.Error != nil {
		return fmt.Errorf("updating sign with ID %d: %w", sign.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := ds.DB.Model(&SignDefinition{}).Where("id = ?", sign.ID).Count(&count).Error; err == nil && count == 0 {
			return fmt.Errorf("updating sign with ID %d: %w", sign.ID, ErrNotFound)
		}
	}
	return nil
}

// DeleteSign removes a sign definition, refusing while submissions still
// reference it.
func (ds *DataStore) DeleteSign(id string) error {
	signID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("converting ID to integer: %w", err)
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Submission{}).Where("sign_id = ?", signID).Count(&count).Error; err != nil {
			return fmt.Errorf("counting submissions for sign ID %d: %w", signID, err)
		}
		if count > 0 {
			return ErrSignInUse
		}
		result := tx.Delete(&SignDefinition{}, signID)
		if result.Error != nil {
			return fmt.Errorf("deleting sign with ID %d: %w", signID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("deleting sign with ID %d: %w", signID, ErrNotFound)
		}
		return nil
	})
}

// CountSubmissionsForSign returns the number of submissions recorded against
// a sign definition.
func (ds *DataStore) CountSubmissionsForSign(signID uint) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Submission{}).Where("sign_id = ?", signID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting submissions for sign ID %d: %w", signID, err)
	}
	return count, nil
}

// SaveSubmission inserts a new submission record into the database.
func (ds *DataStore) SaveSubmission(sub *Submission) error {
	if err := ds.DB.Create(sub).Error; err != nil {
		return fmt.Errorf("saving submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a submission by its ID.
func (ds *DataStore) GetSubmission(id string) (Submission, error) {
	subID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return Submission{}, fmt.Errorf("converting ID to integer: %w", err)
	}

	var sub Submission
	if err := ds.DB.First(&sub, subID).Error; err != nil {
		return Submission{}, fmt.Errorf("getting submission with ID %d: %w", subID, err)
	}
	return sub, nil
}

// SearchUnverified retrieves unverified submissions for a label in insertion
// order, starting after the given cursor ID. A zero cursor starts from the
// beginning.
func (ds *DataStore) SearchUnverified(label string, afterID uint, limit int) ([]Submission, error) {
	var subs []Submission
	query := ds.DB.Where("label = ? AND verified = ?", label, false)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	err := query.Order("id ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("error searching unverified submissions: %w", err)
	}
	return subs, nil
}

// VerifySubmission marks a submission as verified. The flag only ever moves
// from false to true; verifying an already verified submission is a no-op.
func (ds *DataStore) VerifySubmission(id string) error {
	subID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("converting ID to integer: %w", err)
	}

	result := ds.DB.Model(&Submission{}).Where("id = ?", subID).Update("verified", true)
	if result.Error != nil {
		return fmt.Errorf("verifying submission with ID %d: %w", subID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := ds.DB.Model(&Submission{}).Where("id = ?", subID).Count(&count).Error; err == nil && count == 0 {
			return fmt.Errorf("verifying submission with ID %d: %w", subID, ErrNotFound)
		}
	}
	return nil
}

// DeleteSubmission removes an unverified submission. Verified submissions
// are immutable and deletion is refused with ErrSubmissionVerified.
func (ds *DataStore) DeleteSubmission(id string) error {
	subID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("converting ID to integer: %w", err)
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var sub Submission
		if err := tx.First(&sub, subID).Error; err != nil {
			return fmt.Errorf("getting submission with ID %d: %w", subID, err)
		}
		if sub.Verified {
			return ErrSubmissionVerified
		}
		if err := tx.Delete(&Submission{}, subID).Error; err != nil {
			return fmt.Errorf("deleting submission with ID %d: %w", subID, err)
		}
		return nil
	})
}

// SaveEvaluation appends a model evaluation record to the database.
func (ds *DataStore) SaveEvaluation(eval *Evaluation) error {
	if err := ds.DB.Create(eval).Error; err != nil {
		return fmt.Errorf("saving evaluation: %w", err)
	}
	return nil
}

// GetEvaluations retrieves evaluation records, most recent first, with
// pagination.
func (ds *DataStore) GetEvaluations(limit, offset int) ([]Evaluation, error) {
	var evals []Evaluation
	err := ds.DB.Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("error getting evaluations: %w", err)
	}
	return evals, nil
}

// GetEvaluationsForSubmission retrieves all evaluation records for a
// submission in insertion order.
func (ds *DataStore) GetEvaluationsForSubmission(submissionID uint) ([]Evaluation, error) {
	var evals []Evaluation
	err := ds.DB.Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("error getting evaluations for submission ID %d: %w", submissionID, err)
	}
	return evals, nil
}

// SaveSurveyResponse appends a questionnaire response to the database.
func (ds *DataStore) SaveSurveyResponse(resp *SurveyResponse) error {
	if err := ds.DB.Create(resp).Error; err != nil {
		return fmt.Errorf("saving survey response: %w", err)
	}
	return nil
}

// GetSurveyResponses retrieves questionnaire responses, most recent first,
// with pagination.
func (ds *DataStore) GetSurveyResponses(limit, offset int) ([]SurveyResponse, error) {
	var responses []SurveyResponse
	err := ds.DB.Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&responses).Error
	if err != nil {
		return nil, fmt.Errorf("error getting survey responses: %w", err)
	}
	return responses, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &SignDefinition{}, &Submission{}, &Evaluation{}, &SurveyResponse{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
