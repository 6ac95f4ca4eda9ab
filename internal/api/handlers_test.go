package api

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/keylock"
	"alcyxob/equipment-app/internal/repository/memory"
	"alcyxob/equipment-app/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T, jwtSecret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	locks := keylock.New()
	now := func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	ledger := service.NewProgressLedger(store.People(), locks, now)
	oracle := service.NewCompetencyOracle(store.Equipment(), store.Lessons(), service.NewStaffDirectory(store.People()), nil)
	equipment := service.NewEquipmentService(store.Equipment(), store.Lessons(), store.Audit(), locks, nil, now)

	router := gin.New()
	SetupRoutes(router, jwtSecret, Services{
		Progress:  service.NewProgressService(ledger, service.ProgressPolicy{StudentRequiresCompletion: true}, nil),
		Equipment: equipment,
		Loans:     service.NewLoanService(equipment, oracle),
		Oracle:    oracle,
	}, nil)
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) seed(t *testing.T) (equipmentID, lessonID, staffID primitive.ObjectID) {
	t.Helper()
	ctx := context.Background()
	lessonID, err := s.store.Lessons().Create(ctx, &domain.Lesson{Name: "Lathe Basics"})
	require.NoError(t, err)
	equipmentID, err = s.store.Equipment().Create(ctx, &domain.Equipment{Name: "Wood lathe", LinkedLessonID: &lessonID})
	require.NoError(t, err)
	staffID, err = s.store.People().Create(ctx, &domain.Person{Name: "Jane Doe", Role: domain.RoleStaff})
	require.NoError(t, err)
	return equipmentID, lessonID, staffID
}

func TestPing(t *testing.T) {
	s := newTestServer(t, "")
	w := s.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProgressEndpoints_LegacyNumberAndStamping(t *testing.T) {
	s := newTestServer(t, "")
	_, _, staffID := s.seed(t)
	path := "/api/v1/people/" + staffID.Hex() + "/progress"

	w := s.do(t, http.MethodPut, path, `{"Lathe Basics": 100, "Drill": {"progress": 40, "competent": true}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ProgressResponse](t, w)
	require.NotNil(t, resp.Progress["Lathe Basics"].CompletionDate)
	assert.False(t, resp.Progress["Lathe Basics"].Competent)
	assert.NotNil(t, resp.Progress["Drill"].CompetencyDate)

	w = s.do(t, http.MethodPost, path+"/reset", ResetProgressRequest{Lessons: []string{"Lathe Basics"}})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[ProgressResponse](t, w)
	assert.Equal(t, domain.ProgressEntry{}, resp.Progress["Lathe Basics"])

	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ProgressResponse](t, w).Progress, 2)
}

func TestProgressEndpoints_Errors(t *testing.T) {
	s := newTestServer(t, "")
	_, _, staffID := s.seed(t)

	w := s.do(t, http.MethodPut, "/api/v1/people/not-an-id/progress", `{"Lathe": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/people/"+primitive.NewObjectID().Hex()+"/progress", `{"Lathe": 10}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/people/"+staffID.Hex()+"/progress", `{"Lathe": 150}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CodeInvalidField, decode[map[string]string](t, w)["code"])
}

func TestMarkCompetentEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	_, _, staffID := s.seed(t)

	w := s.do(t, http.MethodPost, "/api/v1/progress/competency", MarkCompetentRequest{
		PersonIDs: []string{staffID.Hex()},
		Lessons:   []string{"Lathe Basics"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	person, err := s.store.People().GetByID(context.Background(), staffID)
	require.NoError(t, err)
	assert.True(t, person.Progress["Lathe Basics"].Competent)

	w = s.do(t, http.MethodPost, "/api/v1/progress/competency", MarkCompetentRequest{
		PersonIDs: []string{staffID.Hex(), primitive.NewObjectID().Hex()},
		Lessons:   []string{"Bandsaw"},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	person, err = s.store.People().GetByID(context.Background(), staffID)
	require.NoError(t, err)
	assert.NotContains(t, person.Progress, "Bandsaw")
}

func TestLoanFlow_WarningThenOverride(t *testing.T) {
	s := newTestServer(t, "")
	equipmentID, _, _ := s.seed(t)
	base := "/api/v1/equipment/" + equipmentID.Hex()
	loan := LoanRequest{LendDate: "2026-03-14", LentTo: "Jane Doe", DueBackDate: "2026-03-21", Notes: "weekend"}

	w := s.do(t, http.MethodGet, base+"/competency?borrower=Jane%20Doe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	competency := decode[CompetencyResponse](t, w)
	assert.Equal(t, domain.CompetencyNotCompetent, competency.Status)
	assert.NotEmpty(t, competency.StaffID)

	w = s.do(t, http.MethodPost, base+"/loan", loan)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decision := decode[service.LoanDecision](t, w)
	assert.False(t, decision.Granted)
	require.NotNil(t, decision.Warning)
	assert.Equal(t, domain.CompetencyNotCompetent, decision.Warning.Status)
	assert.Equal(t, "Jane Doe", decision.LoanDetails.LentTo)

	w = s.do(t, http.MethodGet, base, nil)
	untouched := decode[domain.Equipment](t, w)
	assert.Equal(t, domain.StateAvailable, untouched.CurrentState().Kind())

	w = s.do(t, http.MethodPost, base+"/loan/override", loan, OperatorHeader, "Front Desk")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decision = decode[service.LoanDecision](t, w)
	assert.True(t, decision.Granted)

	w = s.do(t, http.MethodGet, base, nil)
	eq := decode[domain.Equipment](t, w)
	onLoan, ok := eq.CurrentState().(domain.OnLoan)
	require.True(t, ok)
	assert.Equal(t, "weekend", onLoan.Loan.Notes)

	w = s.do(t, http.MethodGet, base+"/audit", nil)
	notes := decode[[]domain.AuditNote](t, w)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.AuditLendOverride, notes[0].Action)
	assert.Equal(t, "Front Desk", notes[0].Operator)

	w = s.do(t, http.MethodPost, base+"/lockout", LockRequest{Date: "2026-03-15", CompletedBy: "Sam", Steps: []string{"Tag"}})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeAlreadyOnLoan, decode[map[string]string](t, w)["code"])

	w = s.do(t, http.MethodPost, base+"/return", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/return", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeNotOnLoan, decode[map[string]string](t, w)["code"])
}

func TestLockOutEndpoint_Validation(t *testing.T) {
	s := newTestServer(t, "")
	equipmentID, _, _ := s.seed(t)
	base := "/api/v1/equipment/" + equipmentID.Hex()

	tests := []struct {
		name     string
		body     LockRequest
		wantCode string
	}{
		{"missing date", LockRequest{CompletedBy: "Sam", Steps: []string{"Tag"}}, service.CodeMissingRequiredField},
		{"missing completedBy", LockRequest{Date: "2026-03-14", Steps: []string{"Tag"}}, service.CodeMissingRequiredField},
		{"empty checklist", LockRequest{Date: "2026-03-14", CompletedBy: "Sam"}, service.CodeIncompleteChecklist},
		{"bad date", LockRequest{Date: "14/03/2026", CompletedBy: "Sam", Steps: []string{"Tag"}}, service.CodeInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, base+"/lockout", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, decode[map[string]string](t, w)["code"])
		})
	}

	w := s.do(t, http.MethodPost, base+"/lockout", LockRequest{Date: "2026-03-14", CompletedBy: "Sam", Steps: []string{"Tag"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, base+"/loan", LoanRequest{LendDate: "2026-03-14", LentTo: "Jane Doe", DueBackDate: "2026-03-21"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeAlreadyLocked, decode[map[string]string](t, w)["code"])
}

func TestSetLinkedLessonEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	equipmentID, lessonID, _ := s.seed(t)
	path := "/api/v1/equipment/" + equipmentID.Hex() + "/lesson"

	w := s.do(t, http.MethodPut, path, `{"lessonId": null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[domain.Equipment](t, w).LinkedLessonID)

	w = s.do(t, http.MethodPut, path, `{"lessonId": "`+lessonID.Hex()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lessonID, *decode[domain.Equipment](t, w).LinkedLessonID)

	w = s.do(t, http.MethodPut, path, `{"lessonId": "`+primitive.NewObjectID().Hex()+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperatorMiddleware_JWT(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, secret)
	equipmentID, _, _ := s.seed(t)
	path := "/api/v1/equipment/" + equipmentID.Hex()

	w := s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, path, nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := IssueOperatorToken("other-secret", "Mallory", time.Hour)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, path, nil, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := IssueOperatorToken(secret, "Front Desk", time.Hour)
	require.NoError(t, err)
	w = s.do(t, http.MethodPost, path+"/lockout", LockRequest{Date: "2026-03-14", CompletedBy: "Sam", Steps: []string{"Tag"}},
		"Authorization", "Bearer "+token, OperatorHeader, "Spoofed")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, path+"/audit", nil, "Authorization", "Bearer "+token)
	notes := decode[[]domain.AuditNote](t, w)
	require.Len(t, notes, 1)
	assert.Equal(t, "Front Desk", notes[0].Operator)

	expired, err := IssueOperatorToken(secret, "Front Desk", -time.Minute)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, path, nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
