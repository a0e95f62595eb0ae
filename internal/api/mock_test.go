package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/auth"
	"github.com/nerrad567/gray-logic-compositor/internal/compositor"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/logging"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testIssuer   = "graylogic-test"
	testCategory = content.CategoryID(1)
	testScene    = content.SceneID(20)
)

// fakeProvider implements content.ProtocolConsumer. Queued notifications
// are delivered on the next DispatchEvents.
type fakeProvider struct {
	queued []func(content.ProtocolEventHandler)
	states []string
	err    error
}

func (p *fakeProvider) ContentStateChange(id content.ContentID, state content.OfferState, _ content.Timing) error {
	if p.err != nil {
		return p.err
	}
	p.states = append(p.states, fmt.Sprintf("%d %s", id, state))
	return nil
}

func (p *fakeProvider) ContentSizeChange(id content.ContentID, size content.Size, _ content.Timing) error {
	if p.err != nil {
		return p.err
	}
	p.states = append(p.states, fmt.Sprintf("%d size %dx%d", id, size.Width, size.Height))
	return nil
}

func (p *fakeProvider) AcceptStopOffer(id content.ContentID, _ content.Timing) error {
	if p.err != nil {
		return p.err
	}
	p.states = append(p.states, fmt.Sprintf("%d stop", id))
	return nil
}

func (p *fakeProvider) AssignToConsumer(content.ContentID, content.Size) error { return nil }

func (p *fakeProvider) DispatchEvents(h content.ProtocolEventHandler) error {
	queued := p.queued
	p.queued = nil
	for _, fn := range queued {
		fn(h)
	}
	return nil
}

// fakeRenderer implements content.SceneControl. It acknowledges scene
// states on the next dispatch and records everything else.
type fakeRenderer struct {
	acks    []func(content.SceneEventHandler)
	applied []string
}

func (r *fakeRenderer) SetSceneState(id content.SceneID, state content.SceneState) error {
	r.acks = append(r.acks, func(h content.SceneEventHandler) { h.SceneStateChanged(id, state) })
	return nil
}

func (r *fakeRenderer) SetSceneMapping(content.SceneID, content.DisplayID) error { return nil }

func (r *fakeRenderer) SetSceneDisplayBufferAssignment(id content.SceneID, buffer content.DisplayBufferID, order int32) error {
	r.applied = append(r.applied, fmt.Sprintf("assign scene %d buffer %d order %d", id, buffer, order))
	return nil
}

func (r *fakeRenderer) SetDisplayBufferClearColor(display content.DisplayID, buffer content.DisplayBufferID, _ content.Color) error {
	r.applied = append(r.applied, fmt.Sprintf("clear display %d buffer %d", display, buffer))
	return nil
}

func (r *fakeRenderer) LinkOffscreenBuffer(buffer content.DisplayBufferID, scene content.SceneID, consumer content.DataConsumerID) error {
	r.applied = append(r.applied, fmt.Sprintf("link buffer %d scene %d consumer %d", buffer, scene, consumer))
	return nil
}

func (r *fakeRenderer) LinkData(providerScene content.SceneID, providerID content.DataProviderID, consumerScene content.SceneID, consumerID content.DataConsumerID) error {
	r.applied = append(r.applied, fmt.Sprintf("link data %d/%d -> %d/%d", providerScene, providerID, consumerScene, consumerID))
	return nil
}

func (r *fakeRenderer) Flush() error { return nil }

func (r *fakeRenderer) DispatchEvents(h content.SceneEventHandler) error {
	acks := r.acks
	r.acks = nil
	for _, fn := range acks {
		fn(h)
	}
	return nil
}

// directRunner implements Runner by calling fn on the caller's goroutine
// under a lock, so tests can interleave requests with manual updates.
type directRunner struct {
	mu      sync.Mutex
	ctrl    *content.Controller
	stopped bool
}

func (r *directRunner) Do(ctx context.Context, fn func(*content.Controller) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return compositor.ErrNotRunning
	}
	return fn(r.ctrl)
}

// testEnv is an API server over a real controller with fake collaborators.
type testEnv struct {
	srv      *Server
	router   http.Handler
	ctrl     *content.Controller
	runner   *directRunner
	provider *fakeProvider
	renderer *fakeRenderer

	// flushAudit stops the audit writer once everything queued is written.
	flushAudit func()
}

// newTestEnv builds a testEnv. opts adjust the server dependencies.
func newTestEnv(t *testing.T, hist history.Repository, opts ...func(*Deps)) *testEnv {
	t.Helper()

	env := &testEnv{provider: &fakeProvider{}, renderer: &fakeRenderer{}}
	ctrl, err := content.NewController(content.Config{Categories: []content.CategoryConfig{
		{ID: testCategory, Size: content.Size{Width: 800, Height: 480}, Display: 3},
	}}, env.provider, env.renderer, nil)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	env.ctrl = ctrl
	env.runner = &directRunner{ctrl: ctrl}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:                  wsCfg,
		Security:            config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret, Issuer: testIssuer}},
		Logger:              log,
		Runner:              env.runner,
		History:             hist,
		DefaultReadyTimeout: 5000,
		Version:             "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(wsCfg, log)
	go srv.hub.Run(ctx)

	env.flushAudit = func() {}
	if srv.auditCh != nil {
		auditCtx, stopAudit := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			srv.drainAuditLog(auditCtx)
			close(done)
		}()
		env.flushAudit = func() {
			stopAudit()
			<-done
		}
		t.Cleanup(env.flushAudit)
	}

	env.srv = srv
	env.router = srv.buildRouter()
	return env
}

// tick runs one controller update at now.
func (e *testEnv) tick(t *testing.T, now uint64) {
	t.Helper()
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()
	if err := e.ctrl.Update(now, nil); err != nil {
		t.Fatalf("Update(%d) error = %v", now, err)
	}
}

// offer registers a content on testCategory bound to scene.
func (e *testEnv) offer(t *testing.T, id content.ContentID, scene content.SceneID, now uint64) {
	t.Helper()
	e.provider.queued = append(e.provider.queued,
		func(h content.ProtocolEventHandler) { h.ContentOffered(id, testCategory) },
		func(h content.ProtocolEventHandler) { h.ContentDescription(id, content.ContentTypeScene, uint64(scene)) },
	)
	e.tick(t, now)
}

// makeReady drives an offered content to Ready through the API.
func (e *testEnv) makeReady(t *testing.T, id content.ContentID, now uint64) {
	t.Helper()
	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/contents/%d/ready", id), "", auth.RoleOperator)
	if w.Code != http.StatusAccepted {
		t.Fatalf("ready status = %d: %s", w.Code, w.Body.String())
	}
	e.provider.queued = append(e.provider.queued, func(h content.ProtocolEventHandler) { h.ContentReady(id) })
	e.tick(t, now)
	e.tick(t, now)
}

// do sends a request authenticated with role. An empty role sends no token.
func (e *testEnv) do(t *testing.T, method, path, body string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, role))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func testToken(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateAccessToken("test-"+string(role), role, testSecret, testIssuer, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}
