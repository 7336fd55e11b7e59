package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/herbia/internal/i18n"
	"github.com/ppiankov/herbia/internal/model"
)

type fakeSuggester struct {
	calls int
	got   model.SuggestRequest
	res   *model.SuggestResult
	err   error
}

func (f *fakeSuggester) Suggest(_ context.Context, req model.SuggestRequest) (*model.SuggestResult, error) {
	f.calls++
	f.got = req
	return f.res, f.err
}

type fakeIdentifier struct {
	calls int
	got   model.IdentifyRequest
	res   model.IdentificationResult
	err   error
	max   int64
}

func (f *fakeIdentifier) Identify(_ context.Context, req model.IdentifyRequest) (model.IdentificationResult, error) {
	f.calls++
	f.got = req
	return f.res, f.err
}

func (f *fakeIdentifier) MaxUploadBytes() int64 { return f.max }

type fakeQuota struct {
	exhausted bool
	err       error
}

func (f *fakeQuota) Exhausted(context.Context) (bool, error) { return f.exhausted, f.err }
func (f *fakeQuota) Limit() int64                            { return 150 }

func newTestServer(deps Deps) http.Handler {
	gin.SetMode(gin.TestMode)
	return New(model.ServerConfig{AllowOrigins: []string{"*"}}, deps, nil).Handler()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAssignsRequestID(t *testing.T) {
	h := newTestServer(Deps{Version: "1.2.3"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
	assert.Equal(t, "1.2.3", decodeBody(t, w)["version"])
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestServer(Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(headerRequestID, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(headerRequestID))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/plants/suggest", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestQuotaStatus(t *testing.T) {
	h := newTestServer(Deps{Quota: &fakeQuota{exhausted: true}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quota", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["exhausted"])
	assert.Equal(t, float64(150), body["limit"])
}

func TestSuggestSuccess(t *testing.T) {
	s := &fakeSuggester{res: &model.SuggestResult{
		Description: "A riverside walk",
		Plants:      []model.SelectedPlant{{ScientificName: "Quercus ilex", Rarity: model.RarityCommon}},
		Source:      model.SourceDiscovery,
	}}
	h := newTestServer(Deps{Suggester: s})

	req := httptest.NewRequest(http.MethodPost, "/api/plants/suggest",
		strings.NewReader(`{"origin":"Pamplona","destination":"Estella","month":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "Pamplona", s.got.Origin)
	assert.Equal(t, 5, s.got.Month)
	assert.Equal(t, "fr", s.got.Language)

	var res model.SuggestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Plants, 1)
	assert.Equal(t, "Quercus ilex", res.Plants[0].ScientificName)
	assert.Equal(t, model.SourceDiscovery, res.Source)
}

func TestSuggestExplicitLanguageWins(t *testing.T) {
	s := &fakeSuggester{res: &model.SuggestResult{Plants: []model.SelectedPlant{}}}
	h := newTestServer(Deps{Suggester: s})

	req := httptest.NewRequest(http.MethodPost, "/api/plants/suggest",
		strings.NewReader(`{"origin":"Pamplona","lang":"en"}`))
	req.Header.Set("Accept-Language", "fr")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", s.got.Language)
}

func TestSuggestMalformedBody(t *testing.T) {
	s := &fakeSuggester{}
	h := newTestServer(Deps{Suggester: s})

	req := httptest.NewRequest(http.MethodPost, "/api/plants/suggest", strings.NewReader(`{"origin":`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.calls)
	body := decodeBody(t, w)
	assert.Equal(t, "invalid_input", body["code"])
	assert.Equal(t, i18n.Message("es", i18n.InvalidInput), body["error"])
}

func TestSuggestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		key    string
	}{
		{"quota", fmt.Errorf("gate: %w", model.ErrQuotaExhausted), http.StatusTooManyRequests, "quota_exhausted", i18n.QuotaExhausted},
		{"invalid", fmt.Errorf("origin: %w", model.ErrInvalidInput), http.StatusBadRequest, "invalid_input", i18n.InvalidInput},
		{"contract", fmt.Errorf("describe: %w", model.ErrContractViolation), http.StatusBadGateway, "contract_violation", i18n.GenericFailure},
		{"credentials", model.ErrMissingCredentials, http.StatusInternalServerError, "missing_credentials", i18n.GenericFailure},
		{"internal", errors.New("upstream exploded: secret detail"), http.StatusInternalServerError, "internal", i18n.GenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(Deps{Suggester: &fakeSuggester{err: tt.err}})

			req := httptest.NewRequest(http.MethodPost, "/api/plants/suggest",
				strings.NewReader(`{"origin":"Pamplona","lang":"en"}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, i18n.Message("en", tt.key), body["error"])
			assert.NotContains(t, w.Body.String(), "secret detail")
		})
	}
}

func multipartPhoto(t *testing.T, image []byte, mime string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="leaf.jpg"`)
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestIdentifySuccess(t *testing.T) {
	id := &fakeIdentifier{max: 1024, res: model.IdentificationResult{
		Match: true, Score: 91, IdentifiedAs: "Quercus ilex", Similarity: model.SimilarityExact,
	}}
	h := newTestServer(Deps{Identifier: id})

	body, ctype := multipartPhoto(t, []byte("\xff\xd8\xff fake jpeg"), "image/jpeg", map[string]string{
		"scientificName": " Quercus ilex ",
		"genus":          "Quercus",
		"family":         "Fagaceae",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/plants/identify", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, id.calls)
	assert.Equal(t, "Quercus ilex", id.got.ExpectedScientificName)
	assert.Equal(t, "Quercus", id.got.ExpectedGenus)
	assert.Equal(t, "Fagaceae", id.got.ExpectedFamily)
	assert.Equal(t, "image/jpeg", id.got.MimeType)
	assert.Equal(t, []byte("\xff\xd8\xff fake jpeg"), id.got.Image)

	var res model.IdentificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Match)
	assert.Equal(t, 91, res.Score)
}

func TestIdentifyMissingPhoto(t *testing.T) {
	id := &fakeIdentifier{max: 1024}
	h := newTestServer(Deps{Identifier: id})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("scientificName", "Quercus ilex"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/plants/identify", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, id.calls)
}

func TestIdentifyOversizedPhoto(t *testing.T) {
	id := &fakeIdentifier{max: 10}
	h := newTestServer(Deps{Identifier: id})

	body, ctype := multipartPhoto(t, bytes.Repeat([]byte("x"), 100), "image/jpeg",
		map[string]string{"scientificName": "Quercus ilex", "lang": "en"})
	req := httptest.NewRequest(http.MethodPost, "/api/plants/identify", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, id.calls)
	respBody := decodeBody(t, w)
	assert.Equal(t, "payload_too_large", respBody["code"])
	assert.Equal(t, i18n.Message("en", i18n.ImageTooLarge), respBody["error"])
}

func TestIdentifyUnsupportedMedia(t *testing.T) {
	id := &fakeIdentifier{max: 1024, err: fmt.Errorf("image/gif: %w", model.ErrUnsupportedMedia)}
	h := newTestServer(Deps{Identifier: id})

	body, ctype := multipartPhoto(t, []byte("GIF89a"), "image/gif", map[string]string{"scientificName": "Quercus ilex"})
	req := httptest.NewRequest(http.MethodPost, "/api/plants/identify?lang=fr", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, i18n.Message("fr", i18n.BadImage), decodeBody(t, w)["error"])
}

func TestIdentifyWithoutExpectedName(t *testing.T) {
	id := &fakeIdentifier{max: 1024, res: model.IdentificationResult{Score: 64, IdentifiedAs: "Cistus albidus"}}
	h := newTestServer(Deps{Identifier: id})

	body, ctype := multipartPhoto(t, []byte("\x89PNG fake"), "image/png", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/plants/identify", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, id.calls)
	assert.Empty(t, id.got.ExpectedScientificName)
	assert.Equal(t, "Cistus albidus", decodeBody(t, w)["identifiedAs"])
}
