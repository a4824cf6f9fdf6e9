package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/admission"
	"github.com/harentsoaR/dentist-booking-api/internal/locker"
	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/services"
	"github.com/harentsoaR/dentist-booking-api/internal/storage/memstore"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = 4
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
	tokens *utils.TokenManager
}

func newTestAPI(t *testing.T, checks ...HealthCheck) *testAPI {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memstore.New()
	tokens := utils.NewTokenManager("test-secret", "dentist-booking", time.Hour)
	h := NewHandler(
		services.NewBookingService(store, admission.NewController(admission.DefaultPolicy()), locker.NewKeyedMutex(), log),
		services.NewDentistService(store, log),
		services.NewUserService(store, tokens, log),
		checks...,
	)
	return &testAPI{
		t:      t,
		router: NewRouter(h, RouterConfig{Tokens: tokens, CORSOrigins: []string{"*"}, Log: log}),
		store:  store,
		tokens: tokens,
	}
}

// login creates an account with role directly in the store and returns a
// bearer token for it.
func (a *testAPI) login(role models.Role) (string, primitive.ObjectID) {
	a.t.Helper()
	u, err := a.store.CreateUser(context.Background(), models.User{
		Name:  string(role),
		Email: primitive.NewObjectID().Hex() + "@example.com",
		Role:  role,
	})
	if err != nil {
		a.t.Fatal(err)
	}
	token, err := a.tokens.Generate(u.ID.Hex(), role)
	if err != nil {
		a.t.Fatal(err)
	}
	return token, u.ID
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, out
}

func (a *testAPI) createDentist(token, name string) string {
	a.t.Helper()
	w, body := a.do(http.MethodPost, "/api/v1/dentists", token, map[string]any{
		"name":              name,
		"yearsOfExperience": 10,
		"areaOfExpertise":   "Orthodontics",
	})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("create dentist: %d %s", w.Code, w.Body.String())
	}
	return body["data"].(map[string]any)["id"].(string)
}

func bookingDate(d time.Duration) string {
	return time.Now().Add(d).UTC().Format(time.RFC3339)
}

func TestBookingFlow(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.login(models.RoleAdmin)
	alice, _ := api.login(models.RoleUser)
	bob, _ := api.login(models.RoleUser)

	molar := api.createDentist(admin, "Dr. Molar")
	incisor := api.createDentist(admin, "Dr. Incisor")
	slot := bookingDate(48 * time.Hour)

	w, body := api.do(http.MethodGet, "/api/v1/bookings", admin, nil)
	if w.Code != http.StatusOK || body["count"].(float64) != 0 {
		t.Fatalf("initial list: %d %v", w.Code, body)
	}

	w, body = api.do(http.MethodPost, "/api/v1/dentists/"+molar+"/bookings", alice, map[string]string{"bookingDate": slot})
	if w.Code != http.StatusCreated {
		t.Fatalf("alice create: %d %s", w.Code, w.Body.String())
	}
	bookingID := body["data"].(map[string]any)["id"].(string)

	tests := []struct {
		name    string
		token   string
		dentist string
		date    string
	}{
		{"slot taken", bob, molar, slot},
		{"user already booked", alice, incisor, slot},
		{"lead time too short", bob, incisor, bookingDate(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := api.do(http.MethodPost, "/api/v1/dentists/"+tt.dentist+"/bookings", tt.token, map[string]string{"bookingDate": tt.date})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if body["success"] != false || body["message"] == "" {
				t.Fatalf("body = %v", body)
			}
		})
	}

	w, body = api.do(http.MethodGet, "/api/v1/bookings", admin, nil)
	if w.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("admin list: %d %v", w.Code, body)
	}
	listed := body["data"].([]any)[0].(map[string]any)
	if info, _ := listed["dentistInfo"].(map[string]any); info["name"] != "Dr. Molar" {
		t.Fatalf("dentistInfo = %v", listed["dentistInfo"])
	}
	if _, leaked := listed["adminOverride"]; leaked {
		t.Fatal("adminOverride must not be serialized")
	}

	w, _ = api.do(http.MethodGet, "/api/v1/bookings/"+bookingID, bob, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bob get alice booking = %d, want 401", w.Code)
	}
	w, _ = api.do(http.MethodPut, "/api/v1/bookings/"+bookingID, alice, map[string]string{"bookingDate": bookingDate(72 * time.Hour)})
	if w.Code != http.StatusOK {
		t.Fatalf("alice update = %d %s", w.Code, w.Body.String())
	}
	w, _ = api.do(http.MethodDelete, "/api/v1/bookings/"+bookingID, bob, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bob delete = %d, want 401", w.Code)
	}
	w, _ = api.do(http.MethodDelete, "/api/v1/bookings/"+bookingID, alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("alice delete = %d", w.Code)
	}
	w, _ = api.do(http.MethodGet, "/api/v1/bookings/"+bookingID, alice, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d, want 404", w.Code)
	}
}

func TestDentistDeleteCascades(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.login(models.RoleAdmin)
	alice, _ := api.login(models.RoleUser)
	molar := api.createDentist(admin, "Dr. Molar")

	w, body := api.do(http.MethodPost, "/api/v1/dentists/"+molar+"/bookings", alice, map[string]string{"bookingDate": bookingDate(48 * time.Hour)})
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: %d %s", w.Code, w.Body.String())
	}
	bookingID := body["data"].(map[string]any)["id"].(string)

	w, _ = api.do(http.MethodDelete, "/api/v1/dentists/"+molar, alice, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("user delete dentist = %d, want 401", w.Code)
	}

	w, body = api.do(http.MethodDelete, "/api/v1/dentists/"+molar, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin delete dentist = %d %s", w.Code, w.Body.String())
	}
	if got := body["data"].(map[string]any)["deletedBookings"]; got != float64(1) {
		t.Fatalf("deletedBookings = %v", got)
	}

	w, _ = api.do(http.MethodGet, "/api/v1/bookings/"+bookingID, admin, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("booking after cascade = %d, want 404", w.Code)
	}
	w, _ = api.do(http.MethodGet, "/api/v1/dentists/"+molar, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("dentist after delete = %d, want 404", w.Code)
	}
}

func TestDentistRoutes(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.login(models.RoleAdmin)
	user, _ := api.login(models.RoleUser)
	id := api.createDentist(admin, "Dr. Canine")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"public list", http.MethodGet, "/api/v1/dentists", "", nil, http.StatusOK},
		{"public get", http.MethodGet, "/api/v1/dentists/" + id, "", nil, http.StatusOK},
		{"bad id", http.MethodGet, "/api/v1/dentists/not-an-id", "", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/v1/dentists/" + primitive.NewObjectID().Hex(), "", nil, http.StatusNotFound},
		{"create without token", http.MethodPost, "/api/v1/dentists", "", map[string]any{"name": "Dr. X", "yearsOfExperience": 1, "areaOfExpertise": "Surgery"}, http.StatusUnauthorized},
		{"create as user", http.MethodPost, "/api/v1/dentists", user, map[string]any{"name": "Dr. X", "yearsOfExperience": 1, "areaOfExpertise": "Surgery"}, http.StatusUnauthorized},
		{"create missing fields", http.MethodPost, "/api/v1/dentists", admin, map[string]any{"name": "Dr. X"}, http.StatusBadRequest},
		{"create duplicate name", http.MethodPost, "/api/v1/dentists", admin, map[string]any{"name": "Dr. Canine", "yearsOfExperience": 1, "areaOfExpertise": "Surgery"}, http.StatusBadRequest},
		{"update", http.MethodPut, "/api/v1/dentists/" + id, admin, map[string]any{"yearsOfExperience": 11}, http.StatusOK},
		{"update empty", http.MethodPut, "/api/v1/dentists/" + id, admin, map[string]any{}, http.StatusBadRequest},
		{"update as user", http.MethodPut, "/api/v1/dentists/" + id, user, map[string]any{"yearsOfExperience": 11}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := api.do(tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCreateDentistValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.login(models.RoleAdmin)

	w, body := api.do(http.MethodPost, "/api/v1/dentists", admin, map[string]any{"yearsOfExperience": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	errs, _ := body["errors"].(map[string]any)
	for _, field := range []string{"Name", "YearsOfExperience", "AreaOfExpertise"} {
		if _, found := errs[field]; !found {
			t.Errorf("missing validation error for %s in %v", field, errs)
		}
	}
}

func TestBookingRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	admin, _ := api.login(models.RoleAdmin)
	user, _ := api.login(models.RoleUser)
	id := api.createDentist(admin, "Dr. Premolar")

	tests := []struct {
		name  string
		path  string
		token string
		body  any
		want  int
	}{
		{"no token", "/api/v1/dentists/" + id + "/bookings", "", map[string]string{"bookingDate": bookingDate(48 * time.Hour)}, http.StatusUnauthorized},
		{"garbage token", "/api/v1/dentists/" + id + "/bookings", "nope", map[string]string{"bookingDate": bookingDate(48 * time.Hour)}, http.StatusUnauthorized},
		{"missing date", "/api/v1/dentists/" + id + "/bookings", user, map[string]string{}, http.StatusBadRequest},
		{"malformed date", "/api/v1/dentists/" + id + "/bookings", user, map[string]string{"bookingDate": "tomorrow"}, http.StatusBadRequest},
		{"bad dentist id", "/api/v1/dentists/xyz/bookings", user, map[string]string{"bookingDate": bookingDate(48 * time.Hour)}, http.StatusBadRequest},
		{"unknown dentist", "/api/v1/dentists/" + primitive.NewObjectID().Hex() + "/bookings", user, map[string]string{"bookingDate": bookingDate(48 * time.Hour)}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := api.do(http.MethodPost, tt.path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Alice",
		"email":    "Alice@Example.com",
		"password": "correct-horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	user := body["data"].(map[string]any)
	if user["role"] != "user" {
		t.Fatalf("self registration role = %v", user["role"])
	}
	if _, leaked := user["password"]; leaked {
		t.Fatal("password hash serialized")
	}

	w, _ = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Alice again",
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register = %d, want 400", w.Code)
	}

	w, _ = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", w.Code)
	}

	w, body = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	token := body["data"].(map[string]any)["token"].(string)

	w, body = api.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	if w.Code != http.StatusOK || body["data"].(map[string]any)["email"] != "alice@example.com" {
		t.Fatalf("me = %d %v", w.Code, body)
	}
}

func TestHealth(t *testing.T) {
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	api := newTestAPI(t)
	w, _ := api.do(http.MethodGet, "/health/ready", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ready = %d", w.Code)
	}

	api = newTestAPI(t, down)
	w, body := api.do(http.MethodGet, "/health/ready", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with failing dependency = %d", w.Code)
	}
	if deps := body["dependencies"].(map[string]any); deps["redis"] != "down" {
		t.Fatalf("dependencies = %v", deps)
	}

	w, _ = api.do(http.MethodGet, "/health/live", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("live = %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}
