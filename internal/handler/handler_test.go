package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/middleware"
	"sql-smart-go/internal/model"
	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAgent struct {
	answer    *model.Answer
	err       error
	questions []string
	users     []*model.User
}

func (f *fakeAgent) Ask(_ context.Context, question string, user *model.User) (*model.Answer, error) {
	f.questions = append(f.questions, question)
	f.users = append(f.users, user)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(question) == "" {
		return nil, service.ErrEmptyQuestion
	}
	return f.answer, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return env
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func askRouter(agent service.AgentService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.UserResolver(nil))
	r.POST("/api/ask", NewAskHandler(agent).Ask)
	r.GET("/api/ws", NewChatHandler(agent).Handle)
	return r
}

func TestAsk_Success(t *testing.T) {
	agent := &fakeAgent{answer: &model.Answer{Question: "how many invoices?", SQL: "SELECT 1", RowCount: 1}}
	w := postJSON(askRouter(agent), "/api/ask", `{"question":"how many invoices?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	var ans model.Answer
	if err := json.Unmarshal(env.Data, &ans); err != nil {
		t.Fatal(err)
	}
	if env.Code != http.StatusOK || ans.SQL != "SELECT 1" {
		t.Errorf("envelope = %+v, answer = %+v", env, ans)
	}
	if agent.users[0].ID != "default_user" {
		t.Errorf("user = %+v, want default user", agent.users[0])
	}
}

func TestAsk_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"empty question", `{"question":"  "}`, nil, http.StatusBadRequest},
		{"invalid json", `{"question":`, nil, http.StatusBadRequest},
		{"provider failure", `{"question":"q"}`, &llm.ProviderError{Model: "m", Err: errors.New("503")}, http.StatusBadGateway},
		{"deadline", `{"question":"q"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", `{"question":"q"}`, errors.New("memory down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(askRouter(&fakeAgent{err: tt.err}), "/api/ask", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if env := decode(t, w); env.Code != tt.want || string(env.Data) != "null" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestChatHandler_AnswerThenCompletion(t *testing.T) {
	agent := &fakeAgent{answer: &model.Answer{Question: "list vendors", SQL: `SELECT name FROM "Vendor"`}}
	srv := httptest.NewServer(askRouter(agent))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, msg := range []string{`{"question":"list vendors"}`, "list vendors", ""} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatal(err)
		}
		var first, second map[string]any
		if err := conn.ReadJSON(&first); err != nil {
			t.Fatal(err)
		}
		if err := conn.ReadJSON(&second); err != nil {
			t.Fatal(err)
		}
		wantType := "answer"
		if msg == "" {
			wantType = "error"
		}
		if first["type"] != wantType || second["type"] != "completion" {
			t.Errorf("message %q frames = %v, %v", msg, first["type"], second["type"])
		}
	}
	if len(agent.questions) != 3 || agent.questions[0] != "list vendors" || agent.questions[1] != "list vendors" {
		t.Errorf("questions = %q", agent.questions)
	}
}

func TestParseQuestion(t *testing.T) {
	tests := map[string]string{
		`{"question":"count invoices"}`: "count invoices",
		"  count vendors \n":            "count vendors",
		`{not json`:                     "{not json",
	}
	for in, want := range tests {
		if got := parseQuestion([]byte(in)); got != want {
			t.Errorf("parseQuestion(%q) = %q, want %q", in, got, want)
		}
	}
}

func adminRouter(store memory.Store) *gin.Engine {
	r := gin.New()
	r.Use(middleware.UserResolver(nil))
	h := NewAdminHandler(service.NewMemoryService(store))
	admin := r.Group("/api/admin", middleware.AdminAuthMiddleware())
	admin.GET("/memory", h.ListMemory)
	admin.POST("/memory", h.AddMemory)
	return r
}

func TestAdminMemory_AddAndList(t *testing.T) {
	store := memory.NewLocalStore(10)
	r := adminRouter(store)

	if w := postJSON(r, "/api/admin/memory", `{"text":"Invoice.status is an enum"}`); w.Code != http.StatusOK {
		t.Fatalf("add status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := postJSON(r, "/api/admin/memory", `{"text":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/memory?query=status&limit=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var docs []model.Document
	if err := json.Unmarshal(decode(t, w).Data, &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Text != "Invoice.status is an enum" || docs[0].UserID != "default_user" {
		t.Errorf("docs = %+v", docs)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/memory?limit=abc", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

type staticHistory struct{ msgs []model.ChatMessage }

func (s staticHistory) GetConversationHistory(context.Context, string) ([]model.ChatMessage, error) {
	return s.msgs, nil
}

func TestConversationAndHealth(t *testing.T) {
	r := gin.New()
	r.Use(middleware.UserResolver(nil))
	r.GET("/api/conversation", NewConversationHandler(staticHistory{msgs: []model.ChatMessage{{Role: "user", Content: "hi"}}}).GetConversations)
	r.GET("/health", NewHealthHandler("fallback").Health)

	for path, want := range map[string]string{
		"/api/conversation": `"content":"hi"`,
		"/health":           `"schema_source":"fallback"`,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), want) {
			t.Errorf("GET %s = %d %s", path, w.Code, w.Body.String())
		}
	}
}

type fakeAnalytics struct {
	err    error
	search string
}

func (f *fakeAnalytics) Stats(context.Context) (*model.InvoiceStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.InvoiceStats{TotalSpend: 300, TotalInvoices: 3, AverageInvoiceValue: 100}, nil
}

func (f *fakeAnalytics) Invoices(_ context.Context, search string) ([]model.InvoiceSummary, error) {
	f.search = search
	return []model.InvoiceSummary{{ID: 1, InvoiceNumber: "INV-1", IssueDate: "2025-03-01", VendorName: "Acme"}}, f.err
}

func (f *fakeAnalytics) InvoiceTrends(context.Context) ([]model.TrendPoint, error) {
	return []model.TrendPoint{{Month: "Mar", Count: 2, Total: 30.5}}, f.err
}

func (f *fakeAnalytics) TopVendors(context.Context) ([]model.VendorSpend, error) {
	return []model.VendorSpend{{Name: "Acme", Total: 900}}, f.err
}

func (f *fakeAnalytics) CategorySpend(context.Context) ([]model.CategorySpend, error) {
	return []model.CategorySpend{{Name: "IT", Value: 200}}, f.err
}

func (f *fakeAnalytics) CashOutflow(context.Context) ([]model.OutflowBucket, error) {
	return []model.OutflowBucket{{Bucket: "Overdue", Total: 40}}, f.err
}

func analyticsRouter(svc service.AnalyticsService) *gin.Engine {
	h := NewAnalyticsHandler(svc)
	r := gin.New()
	r.GET("/api/stats", h.Stats)
	r.GET("/api/invoices", h.Invoices)
	r.GET("/api/invoice-trends", h.InvoiceTrends)
	r.GET("/api/vendors/top10", h.TopVendors)
	r.GET("/api/category-spend", h.CategorySpend)
	r.GET("/api/cash-outflow", h.CashOutflow)
	return r
}

func getPath(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAnalyticsHandler(t *testing.T) {
	svc := &fakeAnalytics{}
	r := analyticsRouter(svc)

	tests := []struct {
		path string
		want string
	}{
		{"/api/stats", `{"totalSpend":300,"totalInvoices":3,"averageInvoiceValue":100}`},
		{"/api/invoices?search=acme", `[{"id":1,"invoiceNumber":"INV-1","issueDate":"2025-03-01","status":"","totalAmount":0,"vendorName":"Acme"}]`},
		{"/api/invoice-trends", `[{"month":"Mar","count":2,"total":30.5}]`},
		{"/api/vendors/top10", `[{"name":"Acme","total":900}]`},
		{"/api/category-spend", `[{"name":"IT","value":200}]`},
		{"/api/cash-outflow", `[{"bucket":"Overdue","total":40}]`},
	}
	for _, tt := range tests {
		w := getPath(r, tt.path)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tt.path, w.Code)
		}
		env := decode(t, w)
		if env.Code != http.StatusOK || env.Message != "success" || string(env.Data) != tt.want {
			t.Errorf("GET %s = %+v, want data %s", tt.path, env, tt.want)
		}
	}
	if svc.search != "acme" {
		t.Errorf("search = %q, want acme", svc.search)
	}
}

func TestAnalyticsHandler_ServiceError(t *testing.T) {
	r := analyticsRouter(&fakeAnalytics{err: errors.New("db down")})
	for _, path := range []string{"/api/stats", "/api/invoices", "/api/invoice-trends", "/api/vendors/top10", "/api/category-spend", "/api/cash-outflow"} {
		w := getPath(r, path)
		env := decode(t, w)
		if w.Code != http.StatusInternalServerError || env.Code != http.StatusInternalServerError || string(env.Data) != "null" {
			t.Errorf("GET %s = %d %s", path, w.Code, w.Body.String())
		}
	}
}
