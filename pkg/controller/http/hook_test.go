package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"

	controller "github.com/m-mizutani/gitpulse/pkg/controller/http"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

func postHook(t *testing.T, server *controller.Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/git", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	return w
}

func TestHookHandler_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "commit",
			body:       `{"repo":"/repos/alpha","event":"commit","hash":"abc123","message":"fix bug"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "push",
			body:       `{"repo":"/repos/alpha","event":"push","remote":"origin","branch":"main"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing repo",
			body:       `{"event":"commit","hash":"abc123"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "repo",
		},
		{
			name:       "missing event",
			body:       `{"repo":"/repos/alpha"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "event",
		},
		{
			name:       "unsupported event",
			body:       `{"repo":"/repos/alpha","event":"rebase"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "unsupported event",
		},
		{
			name:       "invalid JSON",
			body:       `{"repo":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := controller.NewHookHandler()
			var calls atomic.Int32
			hook.OnSignal(func(ctx context.Context, sig *model.RawSignal) {
				calls.Add(1)
			})
			server, err := controller.NewHookServer(context.Background(), hook)
			gt.NoError(t, err)

			w := postHook(t, server, tt.body)
			gt.Number(t, w.Code).Equal(tt.wantStatus)

			var resp map[string]string
			gt.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			if tt.wantStatus == http.StatusOK {
				gt.Value(t, resp["status"]).Equal("success")
				gt.Number(t, calls.Load()).Equal(1)
			} else {
				gt.String(t, resp["error"]).Contains(tt.wantError)
				gt.Number(t, calls.Load()).Equal(0)
			}
		})
	}
}

func TestHookHandler_SignalFields(t *testing.T) {
	hook := controller.NewHookHandler()
	var got []*model.RawSignal
	hook.OnSignal(func(ctx context.Context, sig *model.RawSignal) {
		got = append(got, sig)
	})
	// every registered handler receives the signal
	var second int
	hook.OnSignal(func(ctx context.Context, sig *model.RawSignal) {
		second++
	})

	server, err := controller.NewHookServer(context.Background(), hook)
	gt.NoError(t, err)

	w := postHook(t, server, `{"repo":"/repos/alpha","event":"checkout","hash":"c2","ref":"feature"}`)
	gt.Number(t, w.Code).Equal(http.StatusOK)

	gt.Number(t, len(got)).Equal(1)
	gt.Number(t, second).Equal(1)
	sig := got[0]
	gt.Value(t, sig.Source).Equal(model.SourcePushChannel)
	gt.Value(t, sig.RepositoryPath).Equal("/repos/alpha")
	gt.Value(t, sig.Kind).Equal(model.ChangeKindCheckout)
	gt.Value(t, sig.NewHash).Equal("c2")
	gt.Value(t, sig.Ref).Equal("feature")
}

func TestHookServer_OnlyPost(t *testing.T) {
	server, err := controller.NewHookServer(context.Background(), controller.NewHookHandler())
	gt.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/hooks/git", nil)
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	gt.Number(t, w.Code).Equal(http.StatusMethodNotAllowed)
}
