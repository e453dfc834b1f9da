package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"moneybook/internal/core"
)

type countingCreds struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (c *countingCreds) Token(context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *countingCreds) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.cleared++
	return nil
}

func noRetry() RetryPolicy { return RetryPolicy{Retries: -1} }

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                          DefaultBaseURL,
		"api.example.com/api/":      "http://api.example.com/api",
		" https://x.test/api ":      "https://x.test/api",
		"http://localhost:5000/api": "http://localhost:5000/api",
	}
	for in, want := range cases {
		c, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if c.BaseURL() != want {
			t.Fatalf("New(%q) base=%q want %q", in, c.BaseURL(), want)
		}
	}
	if _, err := New("http://"); err == nil {
		t.Fatalf("expected error for url without host")
	}
}

func TestBearerTokenAndEnvelope(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"success":true,"data":{"categories":[{"_id":"c1","name":"Food","type":"expense","icon":"🍜","color":"#ff0000"}]}}`)
	}, WithCredentials(NewStaticToken("tok-1")))

	cats, err := c.Categories.List(context.Background(), core.Expense)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("authorization=%q", gotAuth)
	}
	if gotPath != "/api/categories" || gotQuery != "type=expense" {
		t.Fatalf("path=%q query=%q", gotPath, gotQuery)
	}
	if len(cats) != 1 || cats[0].ID != "c1" || cats[0].Name != "Food" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestNoAuthorizationHeaderWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("unexpected authorization %q", h)
		}
		io.WriteString(w, `{"success":true,"data":{"user":{"_id":"u1","name":"A","email":"a@x.test"}}}`)
	}, WithCredentials(NewStaticToken("")))

	u, err := c.Auth.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("user id=%q", u.ID)
	}
}

func TestInterceptorsRunInOrder(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "server:"+r.Header.Get("X-Trace"))
		io.WriteString(w, `{"success":true,"data":{}}`)
	},
		WithRequestInterceptor(func(req *http.Request) error {
			req.Header.Set("X-Trace", "abc")
			seen = append(seen, "request")
			return nil
		}),
		WithResponseInterceptor(func(resp *http.Response) error {
			b, _ := io.ReadAll(resp.Body)
			seen = append(seen, "response:"+string(b))
			return nil
		}),
	)
	if err := c.Categories.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []string{"request", "server:abc", `response:{"success":true,"data":{}}`}
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Fatalf("order=%v want %v", seen, want)
	}
}

func TestRequestInterceptorErrorAborts(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true },
		WithRequestInterceptor(func(*http.Request) error { return errors.New("blocked") }))
	if _, err := c.Auth.Me(context.Background()); err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected interceptor error, got %v", err)
	}
	if called {
		t.Fatalf("request should not reach the server")
	}
}

func TestServerErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"envelope message", 400, `{"success":false,"message":"amount is required"}`, "amount is required"},
		{"status text", 404, ``, "Not Found"},
		{"error string", 409, `{"error":"duplicate category"}`, "duplicate category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, WithRetryPolicy(noRetry()))
			_, err := c.Transactions.Get(context.Background(), "t1")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Kind != KindServer || apiErr.Status != tt.status || apiErr.Message != tt.want {
				t.Fatalf("got %+v", apiErr)
			}
			if Message(err) != tt.want {
				t.Fatalf("Message=%q", Message(err))
			}
		})
	}
}

func TestSuccessFalseIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"message":"nope"}`)
	})
	_, err := c.Auth.Me(context.Background())
	if Message(err) != "nope" {
		t.Fatalf("expected envelope failure, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base, WithRetryPolicy(noRetry()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Auth.Me(context.Background())
	if !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if Message(err) != msgNetwork {
		t.Fatalf("message=%q", Message(err))
	}
}

func TestTimeoutError(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond), WithRetryPolicy(noRetry()))
	defer close(release)

	_, err := c.Auth.Me(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestBadLoginKeepsServerMessage(t *testing.T) {
	creds := &countingCreds{}
	hookCalls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"success":false,"message":"wrong email or password"}`)
	}, WithCredentials(creds), WithOnUnauthorized(func(context.Context, string) { hookCalls++ }))

	_, err := c.Auth.Login(context.Background(), "a@x.test", "bad")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if Message(err) != "wrong email or password" {
		t.Fatalf("message=%q", Message(err))
	}
	if creds.cleared != 0 || hookCalls != 0 {
		t.Fatalf("logout must not run without a token: cleared=%d hook=%d", creds.cleared, hookCalls)
	}
}

func TestConcurrentUnauthorizedLogsOutOnce(t *testing.T) {
	creds := &countingCreds{token: "expired"}
	var hookCalls atomic.Int32
	var hits atomic.Int32
	gate := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"success":false,"message":"token expired"}`)
	}, WithCredentials(creds), WithOnUnauthorized(func(ctx context.Context, token string) {
		if token != "expired" {
			t.Errorf("hook token=%q", token)
		}
		hookCalls.Add(1)
	}))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Auth.Me(context.Background())
		}(i)
	}
	for hits.Load() < n {
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()

	for i, err := range errs {
		if !IsUnauthorized(err) || Message(err) != msgSignInAgain {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if creds.cleared != 1 {
		t.Fatalf("credentials cleared %d times", creds.cleared)
	}
	if hookCalls.Load() != 1 {
		t.Fatalf("hook ran %d times", hookCalls.Load())
	}
}

func TestGateRemembersHandledToken(t *testing.T) {
	creds := &countingCreds{}
	c, err := New("http://example.test", WithCredentials(creds))
	if err != nil {
		t.Fatal(err)
	}
	if !c.gate.logout(context.Background(), "t1") {
		t.Fatalf("first logout should run")
	}
	if c.gate.logout(context.Background(), "t1") {
		t.Fatalf("second logout for same token should be skipped")
	}
	if !c.gate.logout(context.Background(), "t2") {
		t.Fatalf("another token should log out")
	}
	if creds.cleared != 2 {
		t.Fatalf("cleared=%d", creds.cleared)
	}
}

func TestHealthStripsAPISuffix(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if path != "/health" || h.Status != "ok" {
		t.Fatalf("path=%q status=%q", path, h.Status)
	}
}

func TestTransactionCreateEncodesInput(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s content-type=%s", r.Method, r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"success":true,"data":{"transaction":{"_id":"t9","amount":120.5,"type":"expense","category":{"_id":"c1","name":"Food"},"date":"2025-06-01T00:00:00.000Z"}}}`)
	})
	in := core.TransactionInput{Amount: core.Money{Cents: 12050}, Type: core.Expense, Category: "c1", Date: core.NewDate(2025, 6, 1)}
	tx, err := c.Transactions.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if body["amount"] != 120.5 || body["category"] != "c1" || body["date"] != "2025-06-01" {
		t.Fatalf("request body=%v", body)
	}
	if tx.ID != "t9" || tx.Amount.Cents != 12050 || tx.Category.Name() != "Food" {
		t.Fatalf("transaction=%+v", tx)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/dashboard/summary":
			if q.Get("month") != "6" || q.Get("year") != "2025" {
				t.Errorf("summary query=%v", q)
			}
			io.WriteString(w, `{"success":true,"data":{"totalIncome":1000,"totalExpense":250.5,"balance":749.5,"transactionCount":3}}`)
		case "/api/dashboard/monthly-trend":
			io.WriteString(w, `{"success":true,"data":{"months":[{"month":1,"income":10,"expense":5}]}}`)
		case "/api/dashboard/top-categories":
			if q.Get("limit") != "3" || q.Get("type") != "expense" {
				t.Errorf("top query=%v", q)
			}
			io.WriteString(w, `{"success":true,"data":{"categories":[{"_id":"c1","name":"Food","total":250.5,"count":2,"percentage":100}]}}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	p := core.Period{Year: 2025, Month: 6}

	s, err := c.Dashboard.Summary(ctx, p)
	if err != nil || s.TotalExpense.Cents != 25050 || s.TransactionCount != 3 {
		t.Fatalf("summary=%+v err=%v", s, err)
	}
	trend, err := c.Dashboard.MonthlyTrend(ctx, 2025)
	if err != nil || len(trend) != 1 || trend[0].Month != "Jan" {
		t.Fatalf("trend=%+v err=%v", trend, err)
	}
	top, err := c.Dashboard.TopCategories(ctx, p, core.Expense, 3)
	if err != nil || len(top) != 1 || top[0].Total.Cents != 25050 {
		t.Fatalf("top=%+v err=%v", top, err)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1"}}}`)
	}, WithMetrics(m))
	for i := 0; i < 2; i++ {
		if _, err := c.Auth.Me(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != "moneybook_api_client_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	if total != 2 {
		t.Fatalf("requests=%v", total)
	}
	// A second registration reuses the collectors.
	if again := NewMetrics(reg); again.requests != m.requests {
		t.Fatalf("expected existing collector to be reused")
	}
}
