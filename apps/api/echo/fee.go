package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	feeApi struct {
		svc     *fee.Service
		gstRate decimal.Decimal
	}

	gstBreakdown struct {
		RatePercentage decimal.Decimal `json:"rate_percentage"`
		Base           decimal.Decimal `json:"base"`
		Tax            decimal.Decimal `json:"tax"`
	}

	scheduleResponse struct {
		*fee.Schedule
		GST *gstBreakdown `json:"gst,omitempty"`
	}

	verifyRequest struct {
		Approve *bool `json:"approve"`
	}
)

func registerFeeAPI(g *echo.Group, svc *fee.Service, gstRate float64) {
	api := feeApi{svc: svc, gstRate: decimal.NewFromFloat(gstRate)}

	g.POST("/schedules/preview", api.preview)

	sg := g.Group("/students/:id", cleanParamsMiddleware)
	sg.GET("/schedule", api.schedule)
	sg.GET("/payments", api.paymentView)
	sg.POST("/payments", api.submitPayment)
	sg.GET("/consistency", api.consistency)

	g.POST("/payments/:id/verify", api.verifyPayment, cleanParamsMiddleware)
}

func (api *feeApi) newScheduleResponse(s *fee.Schedule) scheduleResponse {
	res := scheduleResponse{Schedule: s}
	if s.GSTInclusive {
		base, tax := fee.SplitGST(s.ProgramFee, api.gstRate, true)
		res.GST = &gstBreakdown{RatePercentage: api.gstRate, Base: base, Tax: tax}
	}
	return res
}

// Handlers

func (api *feeApi) preview(ctx echo.Context) error {
	var data fee.SchedulePreview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SchedulePreview")
	}
	s, err := api.svc.Preview(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.newScheduleResponse(s))
}

func (api *feeApi) schedule(ctx echo.Context) error {
	s, err := api.svc.Schedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting schedule")
	}
	return ctx.JSON(http.StatusOK, api.newScheduleResponse(s))
}

func (api *feeApi) paymentView(ctx echo.Context) error {
	view, err := api.svc.PaymentView(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reconciling payments")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *feeApi) submitPayment(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	data.StudentID = ctx.Param("id")

	txn, err := api.svc.SubmitPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting payment")
	}
	return ctx.JSON(http.StatusCreated, txn)
}

func (api *feeApi) verifyPayment(ctx echo.Context) error {
	var data verifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to verifyRequest")
	}
	if data.Approve == nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"approve": "this field is required"})
	}

	txn, err := api.svc.VerifyPayment(ctx.Request().Context(), ctx.Param("id"), *data.Approve)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *feeApi) consistency(ctx echo.Context) error {
	report, err := api.svc.CheckConsistency(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking consistency")
	}
	return ctx.JSON(http.StatusOK, report)
}
