package datastore

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/colsign/colsign-go/internal/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a SQLite datastore backed by a temporary file.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestNewSelectsStore(t *testing.T) {
	sqliteSettings := &conf.Settings{}
	sqliteSettings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(sqliteSettings))

	mysqlSettings := &conf.Settings{}
	mysqlSettings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(mysqlSettings))

	assert.Nil(t, New(&conf.Settings{}))
}

func TestUserLifecycle(t *testing.T) {
	store := newTestStore(t)

	user := &User{
		Email:        "maria@example.com",
		PasswordHash: "$2a$10$notarealhash",
		DisplayName:  "Maria",
		RoleID:       2,
	}
	require.NoError(t, store.CreateUser(user))
	require.NotZero(t, user.ID)

	// duplicate email must be rejected by the unique index
	err := store.CreateUser(&User{Email: "maria@example.com"})
	assert.Error(t, err)

	got, err := store.GetUserByEmail("maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	updated, err := store.UpdateUserProfile(idString(user.ID), "Maria", "Gomez", 2)
	require.NoError(t, err)
	assert.Equal(t, "Gomez", updated.LastName)
	assert.Equal(t, 2, updated.LevelID)

	promoted, err := store.UpdateUserRole(idString(user.ID), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted.RoleID)

	_, err = store.GetUser("99999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.UpdateUserRole("99999", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatesToSameValuesAreNotNotFound(t *testing.T) {
	store := newTestStore(t)

	user := &User{Email: "maria@example.com", RoleID: 2, FirstName: "Maria", LastName: "Gomez", LevelID: 2}
	require.NoError(t, store.CreateUser(user))

	// repeating an update with unchanged values must stay a success even
	// when the driver reports zero rows changed
	for i := 0; i < 2; i++ {
		got, err := store.UpdateUserProfile(idString(user.ID), "Maria", "Gomez", 2)
		require.NoError(t, err)
		assert.Equal(t, "Gomez", got.LastName)

		same, err := store.UpdateUserRole(idString(user.ID), 2)
		require.NoError(t, err)
		assert.Equal(t, 2, same.RoleID)
	}

	sign := &SignDefinition{Name: "hola", TypeID: 2, Type: conf.SignTypeWord, Status: conf.SignStatusActive}
	require.NoError(t, store.CreateSign(sign))
	require.NoError(t, store.UpdateSign(sign))
	require.NoError(t, store.UpdateSign(sign))

	missing := &SignDefinition{Name: "nada", TypeID: 2, Type: conf.SignTypeWord, Status: conf.SignStatusActive}
	missing.ID = 99999
	assert.ErrorIs(t, store.UpdateSign(missing), ErrNotFound)
}

func TestSignCatalog(t *testing.T) {
	store := newTestStore(t)

	signs := []*SignDefinition{
		{Name: "hola", TypeID: 2, Type: conf.SignTypeWord, Status: conf.SignStatusActive},
		{Name: "adios", TypeID: 2, Type: conf.SignTypeWord, Status: conf.SignStatusActive},
		{Name: "viejo", TypeID: 2, Type: conf.SignTypeWord, Status: conf.SignStatusInactive},
	}
	for _, s := range signs {
		require.NoError(t, store.CreateSign(s))
	}

	active, err := store.GetActiveSigns()
	require.NoError(t, err)
	require.Len(t, active, 2)
	// ordered by name
	assert.Equal(t, "adios", active[0].Name)
	assert.Equal(t, "hola", active[1].Name)

	all, err := store.GetAllSigns()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byName, err := store.GetSignByName("hola")
	require.NoError(t, err)
	assert.Equal(t, signs[0].ID, byName.ID)

	_, err = store.GetSignByName("HOLA")
	assert.ErrorIs(t, err, ErrNotFound)

	byName.Meaning = "greeting"
	byName.Status = conf.SignStatusInactive
	require.NoError(t, store.UpdateSign(&byName))
	got, err := store.GetSign(idString(byName.ID))
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.Meaning)
	assert.Equal(t, conf.SignStatusInactive, got.Status)
}

func TestDeleteSignRefusedWhileReferenced(t *testing.T) {
	store := newTestStore(t)

	sign := &SignDefinition{Name: "hola", Type: conf.SignTypeWord, Status: conf.SignStatusActive}
	require.NoError(t, store.CreateSign(sign))
	require.NoError(t, store.SaveSubmission(&Submission{Label: "hola", SignID: sign.ID, UserID: 1}))

	err := store.DeleteSign(idString(sign.ID))
	assert.ErrorIs(t, err, ErrSignInUse)

	count, err := store.CountSubmissionsForSign(sign.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// once no submission references the sign, deletion succeeds
	subs, err := store.SearchUnverified("hola", 0, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NoError(t, store.DeleteSubmission(idString(subs[0].ID)))
	require.NoError(t, store.DeleteSign(idString(sign.ID)))

	_, err = store.GetSign(idString(sign.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifySubmissionIsOneWay(t *testing.T) {
	store := newTestStore(t)

	sub := &Submission{Label: "hola", SignID: 1, UserID: 7, Type: conf.SignTypeWord}
	require.NoError(t, store.SaveSubmission(sub))
	assert.False(t, sub.Verified)

	require.NoError(t, store.VerifySubmission(idString(sub.ID)))
	got, err := store.GetSubmission(idString(sub.ID))
	require.NoError(t, err)
	assert.True(t, got.Verified)

	// verifying again keeps the flag set
	require.NoError(t, store.VerifySubmission(idString(sub.ID)))
	got, err = store.GetSubmission(idString(sub.ID))
	require.NoError(t, err)
	assert.True(t, got.Verified)

	err = store.VerifySubmission("99999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSubmissionRefusesVerified(t *testing.T) {
	store := newTestStore(t)

	sub := &Submission{Label: "hola", SignID: 1, UserID: 7}
	require.NoError(t, store.SaveSubmission(sub))
	require.NoError(t, store.VerifySubmission(idString(sub.ID)))

	err := store.DeleteSubmission(idString(sub.ID))
	assert.ErrorIs(t, err, ErrSubmissionVerified)

	// the record must survive the refused deletion
	_, err = store.GetSubmission(idString(sub.ID))
	assert.NoError(t, err)
}

func TestSearchUnverifiedCursorPagination(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 7; i++ {
		require.NoError(t, store.SaveSubmission(&Submission{Label: "hola", SignID: 1, UserID: uint(i + 1)}))
	}
	// verified and foreign-label rows must never appear in results
	other := &Submission{Label: "adios", SignID: 2, UserID: 9}
	require.NoError(t, store.SaveSubmission(other))
	checked := &Submission{Label: "hola", SignID: 1, UserID: 10}
	require.NoError(t, store.SaveSubmission(checked))
	require.NoError(t, store.VerifySubmission(idString(checked.ID)))

	page1, err := store.SearchUnverified("hola", 0, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)

	page2, err := store.SearchUnverified("hola", page1[2].ID, 3)
	require.NoError(t, err)
	require.Len(t, page2, 3)
	assert.Greater(t, page2[0].ID, page1[2].ID)

	page3, err := store.SearchUnverified("hola", page2[2].ID, 3)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	seen := map[uint]bool{}
	for _, s := range append(append(page1, page2...), page3...) {
		assert.Equal(t, "hola", s.Label)
		assert.False(t, s.Verified)
		assert.False(t, seen[s.ID], "submission %d returned twice", s.ID)
		seen[s.ID] = true
	}
}

func TestEvaluations(t *testing.T) {
	store := newTestStore(t)

	eval := &Evaluation{
		Label:        "hola",
		SubmissionID: 42,
		SignName:     "hola",
		SignType:     conf.SignTypeWord,
		Model:        "words_v2",
		Prediction:   "hola",
	}
	require.NoError(t, eval.SetProbabilities([]float64{0.91, 0.06, 0.03}))
	require.NoError(t, store.SaveEvaluation(eval))

	evals, err := store.GetEvaluationsForSubmission(42)
	require.NoError(t, err)
	require.Len(t, evals, 1)

	probs, err := evals[0].GetProbabilities()
	require.NoError(t, err)
	assert.InDelta(t, 0.91, probs[0], 1e-9)

	page, err := store.GetEvaluations(10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSurveyResponses(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveSurveyResponse(&SurveyResponse{
			UserID:  uint(i + 1),
			Answer1: "5",
		}))
	}

	responses, err := store.GetSurveyResponses(2, 0)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	// most recent first
	assert.Greater(t, responses[0].ID, responses[1].ID)
}
