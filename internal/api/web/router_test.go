package web

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/JrMarcco/jsignage/internal/api/web/handler"
	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/api/web/middleware"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"github.com/JrMarcco/jsignage/internal/pkg/registry"
	"github.com/JrMarcco/jsignage/internal/pkg/semaphore"
	"github.com/JrMarcco/jsignage/internal/pkg/sharding"
	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/service/birthday"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/JrMarcco/jsignage/internal/service/channelconf"
	"github.com/JrMarcco/jsignage/internal/service/order"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var _ repository.ChannelConfigRepo = (*memConfigRepo)(nil)

type memConfigRepo struct {
	mu        sync.Mutex
	snapshots []domain.ConfigSnapshot
}

func (r *memConfigRepo) Latest(_ context.Context) (domain.ConfigSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snapshots) == 0 {
		return domain.ConfigSnapshot{}, errs.ErrChannelConfigNotFound
	}
	return r.snapshots[len(r.snapshots)-1], nil
}

func (r *memConfigRepo) Save(_ context.Context, snapshot domain.ConfigSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

func (r *memConfigRepo) History(_ context.Context, _ int) ([]domain.ConfigSnapshot, error) {
	return nil, nil
}

var receiptEnd = time.Date(2026, 7, 14, 10, 5, 0, 0, time.UTC)

type fakeSubmissionSvc struct {
	mu       sync.Mutex
	received []domain.Submission
}

func (s *fakeSubmissionSvc) Submit(_ context.Context, sub domain.Submission) (domain.OrderRecord, error) {
	s.mu.Lock()
	s.received = append(s.received, sub)
	s.mu.Unlock()

	switch {
	case sub.DurationMinutes <= 0:
		return domain.OrderRecord{}, errs.ErrInvalidDuration
	case sub.Channel == domain.ChannelText:
		return domain.OrderRecord{}, errs.ErrSystemClosed
	}
	return domain.OrderRecord{
		QueueNumber:     7,
		RequestId:       sub.RequestId,
		SubmitterId:     sub.SubmitterId,
		Channel:         sub.Channel,
		DisplayEndTime:  receiptEnd,
		DurationMinutes: sub.DurationMinutes,
		Price:           decimal.NewFromInt(int64(sub.DurationMinutes)),
	}, nil
}

func (s *fakeSubmissionSvc) Lookup(_ context.Context, submitter domain.Submitter, queueNumber uint64) (domain.OrderRecord, error) {
	if queueNumber != 7 {
		return domain.OrderRecord{}, errs.ErrOrderNotFound
	}
	if submitter.Id != "u-1" && !submitter.Role.IsAdmin() {
		return domain.OrderRecord{}, errs.ErrPermissionDenied
	}
	return domain.OrderRecord{
		QueueNumber:     7,
		SubmitterId:     "u-1",
		Channel:         domain.ChannelImage,
		DisplayEndTime:  receiptEnd,
		DurationMinutes: 5,
		Price:           decimal.NewFromInt(5),
	}, nil
}

type fakeRegistry struct {
	nodes []registry.ServiceInstance
	err   error
}

func (r *fakeRegistry) Register(context.Context, registry.ServiceInstance) error {
	return nil
}

func (r *fakeRegistry) Unregister(context.Context, registry.ServiceInstance) error {
	return nil
}

func (r *fakeRegistry) Close() error {
	return nil
}

func (r *fakeRegistry) ListService(context.Context, string) ([]registry.ServiceInstance, error) {
	return r.nodes, r.err
}

type testEnv struct {
	engine        *gin.Engine
	signer        *authn.Signer
	store         *channelconf.DefaultStore
	submissionSvc *fakeSubmissionSvc
}

func newTestEnv(t *testing.T, rgst registry.Registry) *testEnv {
	t.Helper()

	pub, pri, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	b := broadcast.NewDefaultBroadcaster(sharding.NewHashStrategy(2), semaphore.NewMaxCntSemaphore(0), broadcast.Config{}, zap.NewNop())
	t.Cleanup(func() { _ = b.Close() })

	store, err := channelconf.NewDefaultStore(
		t.Context(),
		&memConfigRepo{},
		b,
		domain.ChannelConfig{SystemEnabled: true, ImageEnabled: true},
		8,
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)

	today := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	svc := &fakeSubmissionSvc{}

	engine := gin.New()
	NewRouter(engine, Handlers{
		Config: handler.NewConfigHandler(
			store,
			channelconf.NewLocalUpdater(store),
			birthday.NewDefaultEvaluator(time.UTC, func() time.Time { return today }),
			zap.NewNop(),
		),
		Order: handler.NewOrderHandler(svc),
		Admin: handler.NewAdminHandler(b, rgst, "jsignage"),
	}, Middlewares{
		Auth:        middleware.NewAuthBuilder(authn.NewVerifier(pub, "jsignage"), zap.NewNop()),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{Rate: 100, Burst: 100}),
	}, zap.NewNop())

	return &testEnv{
		engine:        engine,
		signer:        authn.NewSigner(pri, "jsignage"),
		store:         store,
		submissionSvc: svc,
	}
}

func (e *testEnv) do(t *testing.T, method string, path string, body any, submitter *domain.Submitter, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if submitter != nil {
		token, err := e.signer.Sign(*submitter, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var res T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/status", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[domain.ConfigSnapshot](t, rec)
	assert.Equal(t, uint64(0), snapshot.Version)
	assert.True(t, snapshot.ImageEnabled)

	_, err := env.store.Set(t.Context(), domain.ChannelConfig{SystemEnabled: false, ImageEnabled: true})
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/api/status", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot = decode[domain.ConfigSnapshot](t, rec)
	assert.Equal(t, uint64(1), snapshot.Version)
	assert.False(t, snapshot.SystemEnabled)
	assert.False(t, snapshot.ImageEnabled)
}

func TestCheckBirthday(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	tcs := []struct {
		name       string
		query      string
		wantStatus int
		want       bool
	}{
		{name: "birthday", query: "1990-07-14", wantStatus: http.StatusOK, want: true},
		{name: "not birthday", query: "1990-07-15", wantStatus: http.StatusOK, want: false},
		{name: "leap day", query: "2000-02-29", wantStatus: http.StatusOK, want: false},
		{name: "invalid", query: "14-07-1990", wantStatus: http.StatusBadRequest},
		{name: "missing", query: "", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := env.do(t, http.MethodGet, "/api/check-birthday?birthday="+tc.query, nil, nil, nil)
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, tc.want, decode[handler.CheckBirthdayResponse](t, rec).IsBirthday)
		})
	}
}

func TestSubmitOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	bd := domain.BirthDate{Year: 1990, Month: time.July, Day: 14}
	submitter := &domain.Submitter{Id: "u-1", BirthDate: &bd}

	tcs := []struct {
		name       string
		submitter  *domain.Submitter
		body       any
		wantStatus int
		wantReason string
	}{
		{
			name:       "unauthenticated",
			body:       handler.SubmitOrderRequest{Channel: "image", DurationMinutes: 5},
			wantStatus: http.StatusUnauthorized,
			wantReason: httperr.ReasonUnauthenticated,
		}, {
			name:       "accepted",
			submitter:  submitter,
			body:       handler.SubmitOrderRequest{Channel: "image", DurationMinutes: 5},
			wantStatus: http.StatusCreated,
		}, {
			name:       "system closed",
			submitter:  submitter,
			body:       handler.SubmitOrderRequest{Channel: "text", DurationMinutes: 5},
			wantStatus: http.StatusConflict,
			wantReason: httperr.ReasonSystemClosed,
		}, {
			name:       "invalid duration",
			submitter:  submitter,
			body:       handler.SubmitOrderRequest{Channel: "image", DurationMinutes: 0},
			wantStatus: http.StatusBadRequest,
			wantReason: httperr.ReasonInvalidDuration,
		}, {
			name:       "malformed body",
			submitter:  submitter,
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
			wantReason: httperr.ReasonInvalidParam,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := env.do(t, http.MethodPost, "/api/orders", tc.body, tc.submitter, map[string]string{
				middleware.HeaderIdempotencyKey: "req-" + tc.name,
			})
			require.Equal(t, tc.wantStatus, rec.Code)

			if tc.wantReason != "" {
				assert.Equal(t, tc.wantReason, decode[httperr.Response](t, rec).Error.Reason)
				return
			}

			receipt := decode[domain.Receipt](t, rec)
			assert.Equal(t, uint64(7), receipt.QueueNumber)
			assert.True(t, receipt.DisplayStartTime.Equal(receiptEnd.Add(-5*time.Minute)))
			assert.True(t, receipt.Price.Equal(decimal.NewFromInt(5)))
		})
	}
}

func TestSubmitOrder_PassesIdentity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	bd := domain.BirthDate{Year: 1990, Month: time.July, Day: 14}

	rec := env.do(
		t, http.MethodPost, "/api/orders",
		handler.SubmitOrderRequest{Channel: "birthday", DurationMinutes: 3},
		&domain.Submitter{Id: "u-9", BirthDate: &bd},
		map[string]string{middleware.HeaderIdempotencyKey: "req-abc"},
	)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, env.submissionSvc.received, 1)
	sub := env.submissionSvc.received[0]
	assert.Equal(t, "req-abc", sub.RequestId)
	assert.Equal(t, "u-9", sub.SubmitterId)
	assert.Equal(t, domain.ChannelBirthday, sub.Channel)
	require.NotNil(t, sub.BirthDate)
	assert.Equal(t, bd, *sub.BirthDate)
}

func TestSubmitOrder_RateLimited(t *testing.T) {
	t.Parallel()

	pub, pri, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	svc := &fakeSubmissionSvc{}
	engine := gin.New()
	NewRouter(engine, Handlers{
		Order: handler.NewOrderHandler(svc),
	}, Middlewares{
		Auth:        middleware.NewAuthBuilder(authn.NewVerifier(pub, "jsignage"), zap.NewNop()),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{Rate: 0.001, Burst: 1}),
	}, zap.NewNop())

	token, err := authn.NewSigner(pri, "jsignage").Sign(domain.Submitter{Id: "u-1"}, time.Hour)
	require.NoError(t, err)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{"channel":"image","duration_minutes":1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestLookupOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	tcs := []struct {
		name       string
		path       string
		submitter  *domain.Submitter
		wantStatus int
	}{
		{name: "owner", path: "/api/orders/7", submitter: &domain.Submitter{Id: "u-1"}, wantStatus: http.StatusOK},
		{name: "admin", path: "/api/orders/7", submitter: &domain.Submitter{Id: "a-1", Role: domain.RoleAdmin}, wantStatus: http.StatusOK},
		{name: "other", path: "/api/orders/7", submitter: &domain.Submitter{Id: "u-2"}, wantStatus: http.StatusForbidden},
		{name: "not found", path: "/api/orders/8", submitter: &domain.Submitter{Id: "u-1"}, wantStatus: http.StatusNotFound},
		{name: "invalid number", path: "/api/orders/abc", submitter: &domain.Submitter{Id: "u-1"}, wantStatus: http.StatusBadRequest},
		{name: "unauthenticated", path: "/api/orders/7", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := env.do(t, http.MethodGet, tc.path, nil, tc.submitter, nil)
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, uint64(7), decode[domain.Receipt](t, rec).QueueNumber)
			}
		})
	}
}

func TestReconcileOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/orders/reconcile", map[string]any{
		"queue_number":     3,
		"channel":          "image",
		"duration_minutes": 10,
		"price":            "10",
		"display_end_time": receiptEnd,
	}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[order.Reconciliation](t, rec)
	require.True(t, res.StillValid)
	require.NotNil(t, res.Window)
	assert.True(t, res.Window.Start.Equal(receiptEnd.Add(-10*time.Minute)))

	rec = env.do(t, http.MethodPost, "/api/orders/reconcile", map[string]any{"channel": "image"}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[order.Reconciliation](t, rec)
	assert.False(t, res.StillValid)
	assert.Equal(t, order.ReasonMissingQueueNumber, res.Reason)
}

func TestAdminConfig(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	admin := &domain.Submitter{Id: "a-1", Role: domain.RoleAdmin}
	cfg := domain.ChannelConfig{SystemEnabled: true, TextEnabled: true}

	rec := env.do(t, http.MethodPut, "/api/admin/config", handler.UpdateConfigRequest{ChannelConfig: cfg}, &domain.Submitter{Id: "u-1"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/config", handler.UpdateConfigRequest{ChannelConfig: cfg}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/config", handler.UpdateConfigRequest{ChannelConfig: cfg}, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[domain.ConfigSnapshot](t, rec)
	assert.Equal(t, uint64(1), snapshot.Version)
	assert.Equal(t, cfg, snapshot.ChannelConfig)

	stale := uint64(0)
	rec = env.do(t, http.MethodPut, "/api/admin/config", handler.UpdateConfigRequest{ChannelConfig: cfg, ExpectedVersion: &stale}, admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httperr.ReasonVersionConflict, decode[httperr.Response](t, rec).Error.Reason)

	curr := uint64(1)
	rec = env.do(t, http.MethodPut, "/api/admin/config", handler.UpdateConfigRequest{ChannelConfig: cfg, ExpectedVersion: &curr}, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), decode[domain.ConfigSnapshot](t, rec).Version)

	rec = env.do(t, http.MethodGet, "/api/admin/config/history", nil, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[handler.HistoryResponse](t, rec).Snapshots
	require.Len(t, history, 2)
	assert.Equal(t, []uint64{2, 1}, []uint64{history[0].Version, history[1].Version})
}

func TestAdminStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	admin := &domain.Submitter{Id: "a-1", Role: domain.RoleAdmin}

	rec := env.do(t, http.MethodGet, "/api/admin/stats", nil, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[broadcast.Stats](t, rec)
	assert.Equal(t, uint64(0), stats.LatestVersion)
	assert.Equal(t, 0, stats.Subscribers)
}

func TestAdminNodes(t *testing.T) {
	t.Parallel()

	admin := &domain.Submitter{Id: "a-1", Role: domain.RoleAdmin}
	nodes := []registry.ServiceInstance{{Name: "jsignage", GrpcAddr: "10.0.0.1:9090", HttpAddr: "10.0.0.1:8080"}}

	tcs := []struct {
		name       string
		registry   registry.Registry
		wantStatus int
		wantNodes  []registry.ServiceInstance
	}{
		{name: "standalone", wantStatus: http.StatusOK, wantNodes: []registry.ServiceInstance{}},
		{name: "cluster", registry: &fakeRegistry{nodes: nodes}, wantStatus: http.StatusOK, wantNodes: nodes},
		{name: "registry error", registry: &fakeRegistry{err: errors.New("etcd unavailable")}, wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, tc.registry)
			rec := env.do(t, http.MethodGet, "/api/admin/nodes", nil, admin, nil)
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, tc.wantNodes, decode[handler.NodesResponse](t, rec).Nodes)
			}
		})
	}
}
