package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/colsign/colsign-go/internal/datastore"
)

func TestGetActiveSignsUsesCache(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetActiveSigns").Return([]datastore.SignDefinition{
		{ID: 1, Name: "hola", Type: "Palabra", Status: "activo"},
	}, nil).Once()
	c := newTestController(t, mockDS)

	for range 2 {
		ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/signs", http.NoBody))
		require.NoError(t, c.GetActiveSigns(ctx))
		require.Equal(t, http.StatusOK, rec.Code)

		var signs []SignResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signs))
		require.Len(t, signs, 1)
		assert.Equal(t, "hola", signs[0].Name)
	}
	mockDS.AssertExpectations(t)
}

// multipartSignRequest builds a catalog creation form, optionally with an
// example clip attached.
func multipartSignRequest(t *testing.T, fields map[string]string, clipName string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if clipName != "" {
		part, err := writer.CreateFormFile("video", clipName)
		require.NoError(t, err)
		_, err = part.Write([]byte("clip-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signs", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestCreateSignWithExampleClip(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("CreateSign", mock.AnythingOfType("*datastore.SignDefinition")).Run(func(args mock.Arguments) {
		args.Get(0).(*datastore.SignDefinition).ID = 3
	}).Return(nil)
	c := newTestController(t, mockDS)

	req := multipartSignRequest(t, map[string]string{
		"name":    "buenos dias",
		"type_id": "3",
		"meaning": "greeting",
	}, "example.mp4")
	ctx, rec := newTestContext(c, req)

	require.NoError(t, c.CreateSign(ctx))
	require.Equal(t, http.StatusCreated, rec.Code)

	var sign SignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sign))
	assert.Equal(t, "buenos dias", sign.Name)
	assert.Equal(t, "Frases", sign.Type)
	assert.Equal(t, "activo", sign.Status)
	require.NotEmpty(t, sign.VideoPath)

	// the stored clip is reachable through the media store
	relPath := c.Media.ParseURL(sign.VideoPath)
	require.NotEmpty(t, relPath)
	file, err := c.Media.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestCreateSignValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing name", map[string]string{"type_id": "1"}},
		{"missing type id", map[string]string{"name": "hola"}},
		{"unknown type id", map[string]string{"name": "hola", "type_id": "9"}},
		{"bad status", map[string]string{"name": "hola", "type_id": "1", "status": "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mockDS := new(MockDataStore)
			c := newTestController(t, mockDS)

			ctx, rec := newTestContext(c, multipartSignRequest(t, tt.fields, ""))
			require.NoError(t, c.CreateSign(ctx))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			mockDS.AssertNotCalled(t, "CreateSign", mock.Anything)
		})
	}
}

func TestCreateSignRemovesClipOnInsertFailure(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("CreateSign", mock.AnythingOfType("*datastore.SignDefinition")).Return(assert.AnError)
	c := newTestController(t, mockDS)

	req := multipartSignRequest(t, map[string]string{"name": "hola", "type_id": "1"}, "example.mp4")
	ctx, rec := newTestContext(c, req)

	require.NoError(t, c.CreateSign(ctx))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, err := c.Media.Open("video_examples/example.mp4")
	assert.Error(t, err)
}

func TestUpdateSignInvalidatesCache(t *testing.T) {
	t.Parallel()
	mockDS := new(MockDataStore)
	mockDS.On("GetActiveSigns").Return([]datastore.SignDefinition{}, nil).Twice()
	mockDS.On("GetSign", "1").Return(datastore.SignDefinition{ID: 1, Name: "hola", TypeID: 2, Type: "Palabra", Status: "activo"}, nil)
	mockDS.On("UpdateSign", mock.AnythingOfType("*datastore.SignDefinition")).Return(nil)
	c := newTestController(t, mockDS)

	ctx, _ := newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/signs", http.NoBody))
	require.NoError(t, c.GetActiveSigns(ctx))

	ctx, rec := newTestContext(c, jsonRequest(http.MethodPut, "/api/v1/signs/1", `{"meaning":"updated"}`))
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")
	require.NoError(t, c.UpdateSign(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	// the listing is fetched again after the write
	ctx, _ = newTestContext(c, httptest.NewRequest(http.MethodGet, "/api/v1/signs", http.NoBody))
	require.NoError(t, c.GetActiveSigns(ctx))
	mockDS.AssertExpectations(t)
}

func TestDeleteSignConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"referenced sign", datastore.ErrSignInUse, http.StatusConflict},
		{"unknown sign", datastore.ErrNotFound, http.StatusNotFound},
		{"database failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mockDS := new(MockDataStore)
			mockDS.On("DeleteSign", "1").Return(tt.err)
			c := newTestController(t, mockDS)

			ctx, rec := newTestContext(c, httptest.NewRequest(http.MethodDelete, "/api/v1/signs/1", http.NoBody))
			ctx.SetParamNames("id")
			ctx.SetParamValues("1")

			require.NoError(t, c.DeleteSign(ctx))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
