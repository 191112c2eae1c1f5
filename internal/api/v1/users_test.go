package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/datastore"
)

func TestGetUserDataRendersIDsAsStrings(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetUser", "7").Return(datastore.User{
		ID: 7, Email: "ana@example.com", FirstName: "Ana", LevelID: 2, RoleID: 2,
	}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/users/data?id=7", http.NoBody))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.GetUserData(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7", resp["id"])
	assert.Equal(t, "2", resp["level_id"])
	assert.Equal(t, "Ana", resp["first_name"])
}

func TestGetUserDataRequiresID(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/users/data", http.NoBody))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.GetUserData(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockDS.AssertNotCalled(t, "GetUser", mock.Anything)
}

func TestGetUserDataUnknownID(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetUser", "55").Return(datastore.User{}, datastore.ErrNotFound)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/users/data?id=55", http.NoBody))
	asProfile(ctx, "1", c.Settings.Security.Roles.Admin)
	require.NoError(t, c.GetUserData(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUserDataDeniesForeignProfile(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/users/data?id=55", http.NoBody))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.GetUserData(ctx))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	mockDS.AssertNotCalled(t, "GetUser", mock.Anything)
}

func TestUpdateUserDataValidatesLevel(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/users/data",
		`{"first_name":"Ana","level_id":9}`))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.UpdateUserData(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockDS.AssertNotCalled(t, "UpdateUserProfile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUserData(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("UpdateUserProfile", "7", "Ana", "Mora", 3).Return(datastore.User{
		ID: 7, FirstName: "Ana", LastName: "Mora", LevelID: 3,
	}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPost, "/api/v1/users/data",
		`{"first_name":"Ana","last_name":"Mora","level_id":3}`))
	asProfile(ctx, "7", c.Settings.Security.Roles.Contributor)
	require.NoError(t, c.UpdateUserData(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.LevelID)
	mockDS.AssertExpectations(t)
}

func TestUpdateUserRoleValidatesRoleID(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPut, "/api/v1/users/role",
		`{"user_id":7,"role_id":42}`))
	asProfile(ctx, "1", c.Settings.Security.Roles.Admin)
	require.NoError(t, c.UpdateUserRole(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockDS.AssertNotCalled(t, "UpdateUserRole", mock.Anything, mock.Anything)
}

func TestUpdateUserRoleBlocksAccount(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("UpdateUserRole", "7", 3).Return(datastore.User{ID: 7, RoleID: 3}, nil)
	c := newTestController(t, mockDS)

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPut, "/api/v1/users/role",
		`{"user_id":7,"role_id":3}`))
	asProfile(ctx, "1", c.Settings.Security.Roles.Admin)
	require.NoError(t, c.UpdateUserRole(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.RoleID)
	mockDS.AssertExpectations(t)
}
