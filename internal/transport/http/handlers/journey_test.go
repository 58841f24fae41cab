package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"madrasa/internal/app/server"
	authcore "madrasa/internal/auth"
	"madrasa/internal/domain/auth"
	"madrasa/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		DataEncryptionKey:  "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Environment:        "test",
		SchoolName:         "Test Madrasa",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		RunMigrations:      true,
		MigrationsDir:      "../../../../migrations",
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		DefaultCurrency:    "USD",
		SFUTokenTTL:        time.Hour,
	}
}

func newTestApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := server.New(context.Background(), testConfig(dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func TestPayrollJourney(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	staffID := createStaff(t, client, ts.URL, token, "Payroll Journey Teacher")

	// Mixed-case type must land normalized.
	postJSON(t, client, ts.URL+"/api/v1/payroll/contracts", token, map[string]any{
		"staffId":    staffID,
		"baseSalary": 1500,
		"currency":   "usd",
		"type":       "Full-Time",
		"startDate":  "2031-01-01",
	})

	contracts := decodeList(t, getJSON(t, client, ts.URL+"/api/v1/payroll/contracts", token))
	contract := findByField(t, contracts, "staffId", staffID)
	if contract["type"] != "full-time" {
		t.Fatalf("expected contract type full-time, got %v", contract["type"])
	}
	if contract["currency"] != "USD" {
		t.Fatalf("expected currency USD, got %v", contract["currency"])
	}

	month := "2031-03"
	postJSON(t, client, ts.URL+"/api/v1/payroll/adjustments", token, map[string]any{
		"staffId":     staffID,
		"month":       month,
		"type":        "bonus",
		"amount":      250,
		"description": "Ramadan bonus",
	})

	runResp := postJSON(t, client, ts.URL+"/api/v1/payroll/run", token, map[string]any{"month": month})
	var run map[string]any
	if err := json.Unmarshal(runResp.Data, &run); err != nil {
		t.Fatalf("failed to decode run response: %v", err)
	}
	if run["generated"].(float64) < 1 {
		t.Fatalf("expected at least one generated record, got %v", run["generated"])
	}

	salaries := decodeList(t, getJSON(t, client, ts.URL+"/api/v1/payroll/salaries?month="+month, token))
	record := findByField(t, salaries, "staffId", staffID)
	if record["status"] != "draft" {
		t.Fatalf("expected draft record, got %v", record["status"])
	}
	if record["totalAmount"].(float64) != 1750 {
		t.Fatalf("expected total 1750, got %v", record["totalAmount"])
	}
	salaryID := record["id"].(string)

	postJSON(t, client, ts.URL+"/api/v1/payroll/salaries/"+salaryID+"/approve", token, map[string]any{})

	// A second approve must surface the transition conflict, not succeed.
	env := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/salaries/"+salaryID+"/approve", token, map[string]any{}, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition error, got %+v", env.Error)
	}

	postJSON(t, client, ts.URL+"/api/v1/payroll/salaries/"+salaryID+"/pay", token, map[string]any{"paymentDate": "2031-03-28"})

	salaries = decodeList(t, getJSON(t, client, ts.URL+"/api/v1/payroll/salaries?month="+month+"&status=paid", token))
	record = findByField(t, salaries, "staffId", staffID)
	if record["status"] != "paid" {
		t.Fatalf("expected paid record, got %v", record["status"])
	}

	// Paid is terminal.
	env = postJSONStatus(t, client, ts.URL+"/api/v1/payroll/salaries/"+salaryID+"/approve", token, map[string]any{}, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition error after payment, got %+v", env.Error)
	}
}

func TestTeacherRoleCannotApproveSalaries(t *testing.T) {
	app, ts := newTestApp(t)
	ctx := context.Background()

	var teacherRoleID string
	if err := app.DB.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", auth.RoleTeacher).Scan(&teacherRoleID); err != nil {
		t.Fatalf("failed to load teacher role: %v", err)
	}

	email := fmt.Sprintf("teacher-%d@example.com", time.Now().UnixNano())
	password := "Teacher123!"
	hash, err := authcore.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	var userID string
	if err := app.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role_id, status)
    VALUES ($1,$2,$3,'active')
    RETURNING id
  `, email, hash, teacherRoleID).Scan(&userID); err != nil {
		t.Fatalf("failed to create teacher user: %v", err)
	}

	client := ts.Client()
	token := login(t, client, ts.URL, email, password)

	env := postJSONStatus(t, client, ts.URL+"/api/v1/payroll/salaries/00000000-0000-0000-0000-000000000000/approve", token, map[string]any{}, http.StatusForbidden)
	if env.Error == nil || env.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden error, got %+v", env.Error)
	}

	env = postJSONStatus(t, client, ts.URL+"/api/v1/payroll/salaries/00000000-0000-0000-0000-000000000000/pay", token, map[string]any{"paymentDate": "2031-03-28"}, http.StatusForbidden)
	if env.Error == nil || env.Error.Code != "forbidden" {
		t.Fatalf("expected forbidden error, got %+v", env.Error)
	}
}

func TestAttendanceStudentHistory(t *testing.T) {
	app, ts := newTestApp(t)
	client := ts.Client()
	token := login(t, client, ts.URL, app.Config.SeedAdminEmail, app.Config.SeedAdminPassword)

	staffID := createStaff(t, client, ts.URL, token, "History Halaqa Teacher")

	resp := postJSON(t, client, ts.URL+"/api/v1/halaqas", token, map[string]any{
		"name":      fmt.Sprintf("History Circle %d", time.Now().UnixNano()),
		"track":     "memorization",
		"teacherId": staffID,
	})
	halaqaID := decodeID(t, resp)

	resp = postJSON(t, client, ts.URL+"/api/v1/students", token, map[string]any{
		"fullName":      "History Student",
		"guardianName":  "History Guardian",
		"guardianPhone": "+96650000001",
	})
	studentID := decodeID(t, resp)

	postJSON(t, client, ts.URL+"/api/v1/halaqas/"+halaqaID+"/enroll", token, map[string]any{"studentId": studentID})

	for day, status := range map[string]string{"2031-04-01": "present", "2031-04-02": "absent"} {
		postJSON(t, client, ts.URL+"/api/v1/attendance", token, map[string]any{
			"halaqaId": halaqaID,
			"date":     day,
			"entries":  []map[string]any{{"studentId": studentID, "status": status}},
		})
	}

	history := studentHistory(t, client, ts.URL, token, studentID, "")
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
	if history[0]["day"] != "2031-04-02" || history[0]["status"] != "absent" {
		t.Fatalf("expected newest record first, got %+v", history[0])
	}
	if history[1]["day"] != "2031-04-01" || history[1]["status"] != "present" {
		t.Fatalf("expected oldest record last, got %+v", history[1])
	}
	if history[0]["halaqaId"] != halaqaID {
		t.Fatalf("expected halaqa %s, got %v", halaqaID, history[0]["halaqaId"])
	}

	bounded := studentHistory(t, client, ts.URL, token, studentID, "?from=2031-04-02")
	if len(bounded) != 1 || bounded[0]["day"] != "2031-04-02" {
		t.Fatalf("expected only the bounded record, got %+v", bounded)
	}
}

func studentHistory(t *testing.T, client *http.Client, baseURL, token, studentID, query string) []map[string]any {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/attendance/students/"+studentID+query, token)
	var payload struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode history response: %v", err)
	}
	return payload.Records
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func createStaff(t *testing.T, client *http.Client, baseURL, token, name string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/staff", token, map[string]any{
		"fullName": name,
		"email":    fmt.Sprintf("staff-%d@example.com", time.Now().UnixNano()),
		"position": "teacher",
	})
	return decodeID(t, resp)
}

func decodeID(t *testing.T, resp envelope) string {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("expected id")
	}
	return id
}

func decodeList(t *testing.T, resp envelope) []map[string]any {
	t.Helper()
	var payload []map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	return payload
}

func findByField(t *testing.T, items []map[string]any, field, want string) map[string]any {
	t.Helper()
	for _, item := range items {
		if item[field] == want {
			return item
		}
	}
	t.Fatalf("no item with %s = %s", field, want)
	return nil
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	resp, raw := doRequest(t, client, http.MethodGet, url, token, nil)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func doRequest(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}
