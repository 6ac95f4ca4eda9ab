package api

import (
	"alcyxob/equipment-app/internal/service"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanHandler exposes the competency-gated loan workflow.
type LoanHandler struct {
	loanService service.LoanService
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// LoanRequest is the body of both a loan request and its override confirmation.
type LoanRequest struct {
	LendDate    string  `json:"lendDate"`
	LentTo      string  `json:"lentTo"`
	BorrowerID  *string `json:"borrowerId"`
	DueBackDate string  `json:"dueBackDate"`
	Notes       string  `json:"notes"`
}

func (r LoanRequest) toService() (service.LoanDetails, error) {
	lendDate, err := parseDate("lendDate", r.LendDate)
	if err != nil {
		return service.LoanDetails{}, err
	}
	dueBack, err := parseDate("dueBackDate", r.DueBackDate)
	if err != nil {
		return service.LoanDetails{}, err
	}
	details := service.LoanDetails{
		LendDate:    lendDate,
		LentTo:      r.LentTo,
		DueBackDate: dueBack,
		Notes:       r.Notes,
	}
	if r.BorrowerID != nil && *r.BorrowerID != "" {
		id, err := primitive.ObjectIDFromHex(*r.BorrowerID)
		if err != nil {
			return service.LoanDetails{}, fmt.Errorf("%w: borrowerId is not a valid ID", service.ErrInvalidField)
		}
		details.BorrowerID = &id
	}
	return details, nil
}

// RequestLoan godoc
// @Summary Request a loan through the competency gate
// @Description Lends when the borrower is competent. Otherwise returns granted=false with a warning and changes nothing.
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Equipment ID"
// @Param loan body LoanRequest true "Loan details"
// @Success 200 {object} service.LoanDecision
// @Failure 400 {object} gin.H "MissingRequiredField"
// @Failure 409 {object} gin.H "AlreadyLocked or AlreadyOnLoan"
// @Router /equipment/{id}/loan [post]
func (h *LoanHandler) RequestLoan(c *gin.Context) {
	h.handle(c, h.loanService.RequestLoan)
}

// ConfirmLoanOverride godoc
// @Summary Lend despite a competency warning
// @Description Skips the gate. Recorded in the audit trail as an override.
// @Tags Loans
// @Param loan body LoanRequest true "The loan details returned with the warning"
// @Success 200 {object} service.LoanDecision
// @Router /equipment/{id}/loan/override [post]
func (h *LoanHandler) ConfirmLoanOverride(c *gin.Context) {
	h.handle(c, h.loanService.ConfirmLoanOverride)
}

func (h *LoanHandler) handle(c *gin.Context, decide func(ctx context.Context, id primitive.ObjectID, details service.LoanDetails, operator string) (*service.LoanDecision, error)) {
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		return
	}
	var req LoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	details, err := req.toService()
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	decision, err := decide(c.Request.Context(), id, details, getOperatorFromContext(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
