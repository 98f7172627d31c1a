package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService drives the manual-transfer proof review sub-state-machine
// (upload -> pending_verification -> approved/rejected) and accepts the
// hosted gateway's paid callback.
type PaymentService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store *store.Store, eventPublisher *broker.EventPublisher) *PaymentService {
	return &PaymentService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// UploadProof attaches manual-transfer evidence to the order. Re-uploading
// while the proof is still pending replaces it; an approved or rejected
// proof is final.
func (ps *PaymentService) UploadProof(ctx context.Context, customerID, orderID int64, reference, proofImage string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.UploadProof")
	defer span.End()

	if strings.TrimSpace(reference) == "" || strings.TrimSpace(proofImage) == "" {
		return nil, validationErr("payment reference and proof image are required")
	}

	order, err := ps.loadManualOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, authErr("only the order's customer can upload payment proof")
	}
	if order.PaymentProof != nil && order.PaymentProof.Status != models.ProofPendingVerification {
		return nil, conflictErr("payment proof was already %s", order.PaymentProof.Status)
	}

	order.PaymentProof = &models.PaymentProof{
		Reference:  reference,
		ProofImage: proofImage,
		Status:     models.ProofPendingVerification,
		UploadedAt: time.Now(),
	}
	if err := ps.store.SaveOrder(ctx, order); err != nil {
		return nil, &TransientError{Err: err}
	}

	util.PaymentProofsUploadedTotal.Inc()
	ps.logger.Info("Payment proof uploaded",
		zap.Int64("order_id", orderID),
		zap.String("reference", reference))
	return order, nil
}

// ApproveProof marks the proof approved and the order paid.
func (ps *PaymentService) ApproveProof(ctx context.Context, sellerID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ApproveProof")
	defer span.End()

	order, err := ps.reviewableOrder(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order.PaymentProof.Status = models.ProofApproved
	order.PaymentProof.ReviewedAt = &now
	order.PaymentProof.ReviewedBy = sellerID
	order.PaymentStatus = models.PaymentStatusPaid
	if err := ps.store.SaveOrder(ctx, order); err != nil {
		return nil, &TransientError{Err: err}
	}

	util.PaymentProofsApprovedTotal.Inc()
	ps.publishReview(ctx, order, models.ProofApproved, "")
	return order, nil
}

// RejectProof marks the proof rejected with a reason.
func (ps *PaymentService) RejectProof(ctx context.Context, sellerID, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RejectProof")
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		return nil, validationErr("a rejection reason is required")
	}

	order, err := ps.reviewableOrder(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order.PaymentProof.Status = models.ProofRejected
	order.PaymentProof.ReviewedAt = &now
	order.PaymentProof.ReviewedBy = sellerID
	order.PaymentProof.RejectionReason = reason
	if err := ps.store.SaveOrder(ctx, order); err != nil {
		return nil, &TransientError{Err: err}
	}

	util.PaymentProofsRejectedTotal.Inc()
	ps.publishReview(ctx, order, models.ProofRejected, reason)
	return order, nil
}

// HandleGatewayCallback is the hosted gateway's "paid" notification: it
// marks the referenced order paid by id. The engine does not implement the
// gateway protocol itself.
func (ps *PaymentService) HandleGatewayCallback(ctx context.Context, orderID int64) error {
	order, err := ps.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundErr("order %d not found", orderID)
	}
	if err != nil {
		return &TransientError{Err: err}
	}
	if order.PaymentMethod != models.PaymentGCash {
		return conflictErr("order %d does not use the %s payment method", orderID, models.PaymentGCash)
	}

	order.PaymentStatus = models.PaymentStatusPaid
	if err := ps.store.SaveOrder(ctx, order); err != nil {
		return &TransientError{Err: err}
	}
	ps.logger.Info("Gateway payment confirmed", zap.Int64("order_id", orderID))
	return nil
}

// loadManualOrder loads the order and checks it uses the manual-transfer
// payment method.
func (ps *PaymentService) loadManualOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := ps.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("order %d not found", orderID)
	}
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	if order.PaymentMethod != models.PaymentGCashManual {
		return nil, conflictErr("payment proof applies only to the %s payment method", models.PaymentGCashManual)
	}
	return order, nil
}

// reviewableOrder loads the order and checks the caller may review its
// pending proof.
func (ps *PaymentService) reviewableOrder(ctx context.Context, sellerID, orderID int64) (*models.Order, error) {
	order, err := ps.loadManualOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, authErr("only the order's seller can review payment proof")
	}
	if order.PaymentProof == nil {
		return nil, conflictErr("no payment proof has been uploaded")
	}
	if order.PaymentProof.Status != models.ProofPendingVerification {
		return nil, conflictErr("payment proof was already %s", order.PaymentProof.Status)
	}
	return order, nil
}

func (ps *PaymentService) publishReview(ctx context.Context, order *models.Order, outcome, reason string) {
	event := &models.PaymentReviewedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentReviewed,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		SellerID:   order.SellerID,
		Outcome:    outcome,
		Reason:     reason,
	}
	if err := ps.eventPublisher.PublishPaymentReviewed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentReviewed event", zap.Error(err))
	}
}
