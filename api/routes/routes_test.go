package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/bookmeta/api/handlers"
	"github.com/feichai0017/bookmeta/api/middleware"
	"github.com/feichai0017/bookmeta/internal/models"
	"github.com/feichai0017/bookmeta/internal/service/book"
	"github.com/feichai0017/bookmeta/internal/service/extraction"
	"github.com/feichai0017/bookmeta/internal/service/intake"
	"github.com/feichai0017/bookmeta/pkg/deadletter"
	"github.com/feichai0017/bookmeta/pkg/logger"
	"github.com/feichai0017/bookmeta/pkg/notify"
	"github.com/feichai0017/bookmeta/pkg/storage"
)

var testAuth = middleware.AuthConfig{Secret: "test-secret", Issuer: "bookclub"}

const testEventSecret = "event-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.UploadEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev models.UploadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type apiHarness struct {
	router *gin.Engine
	books  *book.MemoryStore
	dl     *deadletter.MemoryQueue
	pub    *recordingPublisher
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger()

	h := &apiHarness{
		books: book.NewMemoryStore(),
		dl:    deadletter.NewMemoryQueue(),
		pub:   &recordingPublisher{},
	}
	svc := intake.NewService(h.books, storage.NewMemoryStorage("covers"), h.pub, notify.NewMemoryStatus(), nil, log,
		&intake.ServiceConfig{Bucket: "covers"})
	replayer := extraction.NewReplayer(h.dl, h.pub, h.books, log)

	h.router = gin.New()
	SetupRoutes(h.router, handlers.NewHandlers(svc, replayer, log), Options{Auth: testAuth, EventSecret: testEventSecret})
	return h
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := middleware.SignToken(testAuth, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return tok
}

func (h *apiHarness) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// event posts an object-created notification signed with secret; an empty
// secret sends it unsigned.
func (h *apiHarness) event(t *testing.T, secret string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/object-created", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middleware.SignatureHeader, middleware.SignPayload(secret, data))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	h := newAPI(t)
	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestObjectCreated(t *testing.T) {
	h := newAPI(t)

	w := h.event(t, testEventSecret, gin.H{
		"key": "u1/cover.jpg", "ownerId": "u1", "size": 1024,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var acc intake.Accepted
	decode(t, w, &acc)
	assert.Equal(t, "processing", acc.Status)
	assert.NotEmpty(t, acc.BookID)
	assert.NotEmpty(t, acc.EventID)
	require.Len(t, h.pub.events, 1)

	_, err := h.books.Get(context.Background(), acc.BookID)
	assert.NoError(t, err)
}

func TestObjectCreated_BadRequests(t *testing.T) {
	h := newAPI(t)

	w := h.event(t, testEventSecret, gin.H{"key": "u1/cover.jpg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.event(t, testEventSecret, gin.H{"key": "u1/readme.md", "ownerId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var er handlers.ErrorResponse
	decode(t, w, &er)
	assert.Equal(t, "INVALID_QUERY", er.Code)

	assert.Empty(t, h.pub.events)
}

func TestObjectCreated_RejectsUnsignedEvents(t *testing.T) {
	h := newAPI(t)
	body := gin.H{"key": "u1/cover.jpg", "ownerId": "u1", "size": 1024}

	w := h.event(t, "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.event(t, "guessed-secret", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// signature over a different body
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/object-created",
		bytes.NewReader([]byte(`{"key":"u2/cover.jpg","ownerId":"u2","size":1024}`)))
	req.Header.Set(middleware.SignatureHeader, middleware.SignPayload(testEventSecret, data))
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, h.pub.events)
}

func TestObjectCreated_EmptySecretRejectsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/events", middleware.VerifySignature(""), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	body := []byte(`{"key":"u1/cover.jpg"}`)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, middleware.SignPayload("", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_EmptySecretRejectsForgedTokens(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role:             OperatorRole,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "attacker"},
	}).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = middleware.ParseToken(middleware.AuthConfig{}, forged)
	assert.ErrorIs(t, err, middleware.ErrNoSecret)

	_, err = middleware.SignToken(middleware.AuthConfig{}, middleware.Claims{})
	assert.ErrorIs(t, err, middleware.ErrNoSecret)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, handlers.NewHandlers(nil, nil, logger.NewTestLogger()), Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dead-letter", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtract_AuthAndOwnership(t *testing.T) {
	h := newAPI(t)
	h.books.Put(models.BookRecord{ID: "b1", OwnerID: "u1", SourceImageRef: models.ImageRef{Bucket: "covers", Key: "u1/c.jpg"}})

	w := h.do(t, http.MethodPost, "/api/v1/books/b1/extract", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/books/b1/extract", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/books/b1/extract", token(t, "u2", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/books/missing/extract", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/books/b1/extract?strategy=bogus", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/books/b1/extract?strategy=cost-optimized", token(t, "u1", ""), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, h.pub.events, 1)
	assert.Equal(t, models.EventManualRetry, h.pub.events[0].Source)
	assert.Equal(t, models.StrategyCostOptimized, h.pub.events[0].Strategy)
}

func TestExtract_RejectsWrongIssuer(t *testing.T) {
	h := newAPI(t)
	h.books.Put(models.BookRecord{ID: "b1", OwnerID: "u1", SourceImageRef: models.ImageRef{Key: "u1/c.jpg"}})

	tok, err := middleware.SignToken(middleware.AuthConfig{Secret: testAuth.Secret}, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "someone-else"},
	})
	require.NoError(t, err)

	w := h.do(t, http.MethodPost, "/api/v1/books/b1/extract", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetadata(t *testing.T) {
	h := newAPI(t)
	isbn := "9780132350884"
	h.books.Put(models.BookRecord{
		ID:             "b1",
		OwnerID:        "u1",
		Title:          "Clean Code",
		MetadataSource: models.SourceAutoProcessed,
		AdvancedMetadata: models.NewAdvancedMetadata(time.Now(), models.ImageRef{}, models.Metadata{ISBN13: &isbn},
			models.Confidence{Overall: 77}, nil),
	})

	w := h.do(t, http.MethodGet, "/api/v1/books/b1/metadata", token(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AdvancedMetadata *models.AdvancedMetadata `json:"advancedMetadata"`
		Legacy           map[string]interface{}   `json:"legacy"`
	}
	decode(t, w, &body)
	require.NotNil(t, body.AdvancedMetadata)
	assert.NotNil(t, body.AdvancedMetadata.Provenance)
	assert.Equal(t, isbn, body.Legacy["isbn13"])
	assert.Equal(t, "Clean Code", body.Legacy["title"])
}

func TestDeadLetterRoutes(t *testing.T) {
	h := newAPI(t)
	ctx := context.Background()
	h.books.Put(models.BookRecord{ID: "b1", OwnerID: "u1", MetadataSource: models.SourcePending})
	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, h.dl.Push(ctx, models.DeadLetterEntry{
			RunID: id,
			Event: models.UploadEvent{EventID: "e-" + id, BookID: "b1", OwnerID: "u1", Key: "u1/c.jpg"},
		}))
	}
	op := token(t, "ops", OperatorRole)

	w := h.do(t, http.MethodGet, "/api/v1/dead-letter", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/dead-letter?max=abc", op, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/dead-letter", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 2, list.Count)

	w = h.do(t, http.MethodPost, "/api/v1/dead-letter/r1/discard", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec, err := h.books.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.SourceFailed, rec.MetadataSource)

	w = h.do(t, http.MethodDelete, "/api/v1/dead-letter/r1", op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/dead-letter/replay?max=10", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report extraction.ReplayReport
	decode(t, w, &report)
	assert.Equal(t, []string{"r2"}, report.Replayed)
	require.Len(t, h.pub.events, 1)
	assert.Equal(t, "e-r2", h.pub.events[0].EventID)

	n, err := h.dl.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
