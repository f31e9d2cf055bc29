package amazonpay

import (
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
	"github.com/kevin07696/amazonpay-service/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// API version of the OffAmazonPayments endpoint family
const apiVersion = "2013-01-01"

// price is the provider's amount/currency pair as it appears in XML payloads
type price struct {
	Amount       string `xml:"Amount"`
	CurrencyCode string `xml:"CurrencyCode"`
}

func (p price) decimal() (decimal.Decimal, error) {
	if p.Amount == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(p.Amount)
}

// status is the provider's state/reason pair attached to authorization,
// capture and refund objects
type status struct {
	State               string `xml:"State"`
	ReasonCode          string `xml:"ReasonCode"`
	LastUpdateTimestamp string `xml:"LastUpdateTimestamp"`
}

func (s status) timestamp() time.Time {
	t, err := timeutil.ParseDate(time.RFC3339, s.LastUpdateTimestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

type xmlConstraint struct {
	ConstraintID string `xml:"ConstraintID"`
	Description  string `xml:"Description"`
}

type xmlAuthorizationDetails struct {
	AmazonAuthorizationID    string `xml:"AmazonAuthorizationId"`
	AuthorizationReferenceID string `xml:"AuthorizationReferenceId"`
	AuthorizationAmount      price  `xml:"AuthorizationAmount"`
	CapturedAmount           price  `xml:"CapturedAmount"`
	AuthorizationStatus      status `xml:"AuthorizationStatus"`
	IDList                   struct {
		Members []string `xml:"member"`
	} `xml:"IdList"`
}

type xmlCaptureDetails struct {
	AmazonCaptureID    string `xml:"AmazonCaptureId"`
	CaptureReferenceID string `xml:"CaptureReferenceId"`
	CaptureAmount      price  `xml:"CaptureAmount"`
	CaptureStatus      status `xml:"CaptureStatus"`
}

type xmlRefundDetails struct {
	AmazonRefundID    string `xml:"AmazonRefundId"`
	RefundReferenceID string `xml:"RefundReferenceId"`
	RefundAmount      price  `xml:"RefundAmount"`
	RefundStatus      status `xml:"RefundStatus"`
}

type xmlOrderReferenceDetails struct {
	AmazonOrderReferenceID string `xml:"AmazonOrderReferenceId"`
	OrderReferenceStatus   status `xml:"OrderReferenceStatus"`
	OrderTotal             price  `xml:"OrderTotal"`
	Constraints            struct {
		Constraints []xmlConstraint `xml:"Constraint"`
	} `xml:"Constraints"`
}

type xmlBillingAgreementDetails struct {
	AmazonBillingAgreementID string `xml:"AmazonBillingAgreementId"`
	BillingAgreementStatus   status `xml:"BillingAgreementStatus"`
	Constraints              struct {
		Constraints []xmlConstraint `xml:"Constraint"`
	} `xml:"Constraints"`
}

// Response envelopes. The provider wraps every result in
// <XResponse><XResult>...</XResult><ResponseMetadata/></XResponse>.

type setOrderReferenceDetailsResponse struct {
	Result struct {
		OrderReferenceDetails xmlOrderReferenceDetails `xml:"OrderReferenceDetails"`
	} `xml:"SetOrderReferenceDetailsResult"`
}

type getOrderReferenceDetailsResponse struct {
	Result struct {
		OrderReferenceDetails xmlOrderReferenceDetails `xml:"OrderReferenceDetails"`
	} `xml:"GetOrderReferenceDetailsResult"`
}

type authorizeResponse struct {
	Result struct {
		AuthorizationDetails xmlAuthorizationDetails `xml:"AuthorizationDetails"`
	} `xml:"AuthorizeResult"`
}

type getAuthorizationDetailsResponse struct {
	Result struct {
		AuthorizationDetails xmlAuthorizationDetails `xml:"AuthorizationDetails"`
	} `xml:"GetAuthorizationDetailsResult"`
}

type captureResponse struct {
	Result struct {
		CaptureDetails xmlCaptureDetails `xml:"CaptureDetails"`
	} `xml:"CaptureResult"`
}

type getCaptureDetailsResponse struct {
	Result struct {
		CaptureDetails xmlCaptureDetails `xml:"CaptureDetails"`
	} `xml:"GetCaptureDetailsResult"`
}

type refundResponse struct {
	Result struct {
		RefundDetails xmlRefundDetails `xml:"RefundDetails"`
	} `xml:"RefundResult"`
}

type getRefundDetailsResponse struct {
	Result struct {
		RefundDetails xmlRefundDetails `xml:"RefundDetails"`
	} `xml:"GetRefundDetailsResult"`
}

type getBillingAgreementDetailsResponse struct {
	Result struct {
		BillingAgreementDetails xmlBillingAgreementDetails `xml:"BillingAgreementDetails"`
	} `xml:"GetBillingAgreementDetailsResult"`
}

type validateBillingAgreementResponse struct {
	Result struct {
		ValidationResult       string `xml:"ValidationResult"`
		FailureReasonCode      string `xml:"FailureReasonCode"`
		BillingAgreementStatus status `xml:"BillingAgreementStatus"`
	} `xml:"ValidateBillingAgreementResult"`
}

type authorizeOnBillingAgreementResponse struct {
	Result struct {
		AuthorizationDetails xmlAuthorizationDetails `xml:"AuthorizationDetails"`
	} `xml:"AuthorizeOnBillingAgreementResult"`
}

// errorResponse is the provider's error envelope for non-2xx answers
type errorResponse struct {
	Error struct {
		Type    string `xml:"Type"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
	RequestID string `xml:"RequestId"`
}

// Conversions from XML payloads into the normalized port structs

func (d xmlAuthorizationDetails) toPort() (*ports.AuthorizationDetails, error) {
	state, err := domain.ParseAuthorizationState(d.AuthorizationStatus.State)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReasonCode(d.AuthorizationStatus.ReasonCode)
	if err != nil {
		return nil, err
	}
	amount, err := d.AuthorizationAmount.decimal()
	if err != nil {
		return nil, err
	}
	captured, err := d.CapturedAmount.decimal()
	if err != nil {
		return nil, err
	}
	return &ports.AuthorizationDetails{
		AuthorizationID:          d.AmazonAuthorizationID,
		AuthorizationReferenceID: d.AuthorizationReferenceID,
		State:                    state,
		ReasonCode:               reason,
		Amount:                   amount,
		Currency:                 d.AuthorizationAmount.CurrencyCode,
		CapturedAmount:           captured,
		CapturedCurrency:         d.CapturedAmount.CurrencyCode,
		CaptureIDs:               d.IDList.Members,
		Timestamp:                d.AuthorizationStatus.timestamp(),
	}, nil
}

func (d xmlCaptureDetails) toPort() (*ports.CaptureDetails, error) {
	state, err := domain.ParseAuthorizationState(d.CaptureStatus.State)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReasonCode(d.CaptureStatus.ReasonCode)
	if err != nil {
		return nil, err
	}
	amount, err := d.CaptureAmount.decimal()
	if err != nil {
		return nil, err
	}
	return &ports.CaptureDetails{
		CaptureID:          d.AmazonCaptureID,
		CaptureReferenceID: d.CaptureReferenceID,
		State:              state,
		ReasonCode:         reason,
		Amount:             amount,
		Currency:           d.CaptureAmount.CurrencyCode,
		Timestamp:          d.CaptureStatus.timestamp(),
	}, nil
}

func (d xmlRefundDetails) toPort() (*ports.RefundDetails, error) {
	state, err := domain.ParseAuthorizationState(d.RefundStatus.State)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReasonCode(d.RefundStatus.ReasonCode)
	if err != nil {
		return nil, err
	}
	amount, err := d.RefundAmount.decimal()
	if err != nil {
		return nil, err
	}
	return &ports.RefundDetails{
		RefundID:          d.AmazonRefundID,
		RefundReferenceID: d.RefundReferenceID,
		State:             state,
		ReasonCode:        reason,
		Amount:            amount,
		Currency:          d.RefundAmount.CurrencyCode,
		Timestamp:         d.RefundStatus.timestamp(),
	}, nil
}

func (d xmlOrderReferenceDetails) toPort() (*ports.OrderReferenceDetails, error) {
	state, err := domain.ParseAgreementStatus(d.OrderReferenceStatus.State)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReasonCode(d.OrderReferenceStatus.ReasonCode)
	if err != nil {
		return nil, err
	}
	amount, err := d.OrderTotal.decimal()
	if err != nil {
		return nil, err
	}
	constraints, err := parseConstraints(d.Constraints.Constraints)
	if err != nil {
		return nil, err
	}
	return &ports.OrderReferenceDetails{
		OrderReferenceID: d.AmazonOrderReferenceID,
		State:            state,
		ReasonCode:       reason,
		Constraints:      constraints,
		Amount:           amount,
		Currency:         d.OrderTotal.CurrencyCode,
	}, nil
}

func (d xmlBillingAgreementDetails) toPort() (*ports.BillingAgreementDetails, error) {
	state, err := domain.ParseAgreementStatus(d.BillingAgreementStatus.State)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReasonCode(d.BillingAgreementStatus.ReasonCode)
	if err != nil {
		return nil, err
	}
	constraints, err := parseConstraints(d.Constraints.Constraints)
	if err != nil {
		return nil, err
	}
	return &ports.BillingAgreementDetails{
		AgreementID: d.AmazonBillingAgreementID,
		Status:      state,
		ReasonCode:  reason,
		Constraints: constraints,
	}, nil
}

func parseConstraints(raw []xmlConstraint) ([]domain.ConstraintID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.ConstraintID, 0, len(raw))
	for _, c := range raw {
		id, err := domain.ParseConstraintID(c.ConstraintID)
		if err != nil {
			// Unknown constraints degrade to the generic constraint error
			// instead of failing the whole parse; the provider adds new
			// constraint ids without notice.
			id = domain.ConstraintUnknown
		}
		out = append(out, id)
	}
	return out, nil
}
