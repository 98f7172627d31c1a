package api

import (
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	orderService   *service.OrderService
	paymentService *service.PaymentService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
) *Handler {
	return &Handler{
		cartService:    cartService,
		orderService:   orderService,
		paymentService: paymentService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// The gateway callback authenticates with its own shared secret upstream,
	// not with a user identity.
	v1.POST("/payments/gateway/callback", h.gatewayCallback)

	authed := v1.Group("", identityMiddleware())
	{
		cart := authed.Group("/cart")
		{
			cart.GET("", h.getCart)
			cart.DELETE("", h.clearCart)
			cart.GET("/count", h.cartCount)
			cart.POST("/validate", h.validateCart)
			cart.POST("/items", h.addCartItem)
			cart.PATCH("/items/:lineId", h.updateCartItem)
			cart.DELETE("/items/:lineId", h.removeCartItem)
		}

		orders := authed.Group("/orders")
		{
			orders.POST("", h.createFromCart)
			orders.POST("/direct", h.createDirect)
			orders.GET("", h.listMyOrders)
			orders.GET("/:id", h.getOrder)
			orders.POST("/:id/accept", requireRole(RoleSeller), h.acceptOrder)
			orders.POST("/:id/cancel", requireRole(RoleCustomer), h.cancelOrder)
			orders.PATCH("/:id/status", requireRole(RoleSeller), h.updateStatus)
			orders.POST("/:id/payment-proof", requireRole(RoleCustomer), h.uploadProof)
			orders.POST("/:id/payment-proof/approve", requireRole(RoleSeller), h.approveProof)
			orders.POST("/:id/payment-proof/reject", requireRole(RoleSeller), h.rejectProof)
		}

		authed.GET("/seller/orders", requireRole(RoleSeller), h.listSellerOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// --- cart ---

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Item added to cart", cart)
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.cartService.GetCart(c.Request.Context(), callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cart, err := h.cartService.SetQuantity(c.Request.Context(), callerID(c), c.Param("lineId"), req.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart updated", cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.cartService.RemoveItem(c.Request.Context(), callerID(c), c.Param("lineId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Item removed from cart", cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.ClearCart(c.Request.Context(), callerID(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart cleared", nil)
}

func (h *Handler) cartCount(c *gin.Context) {
	count, err := h.cartService.Count(c.Request.Context(), callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"count": count})
}

func (h *Handler) validateCart(c *gin.Context) {
	issues, err := h.cartService.ValidateItems(c.Request.Context(), callerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// --- orders ---

func (h *Handler) createFromCart(c *gin.Context) {
	var req service.CreateFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	orders, err := h.orderService.CreateFromCart(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Orders created", orders)
}

func (h *Handler) createDirect(c *gin.Context) {
	var req service.CreateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	orders, err := h.orderService.CreateDirect(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Orders created", orders)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.orderService.ListCustomerOrders(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"orders": orders, "total": total})
}

func (h *Handler) listSellerOrders(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.orderService.ListSellerOrders(c.Request.Context(), callerID(c), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"orders": orders, "total": total})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), callerID(c), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", order)
}

func (h *Handler) acceptOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		EstimatedMinutes int    `json:"estimated_minutes"`
		Note             string `json:"note"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	order, err := h.orderService.AcceptOrder(c.Request.Context(), callerID(c), orderID, req.EstimatedMinutes, req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Order accepted", order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), callerID(c), orderID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Order canceled and items returned to cart", order)
}

func (h *Handler) updateStatus(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Status           string `json:"status" binding:"required"`
		Note             string `json:"note"`
		EstimatedMinutes int    `json:"estimated_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), callerID(c), orderID,
		models.OrderStatus(req.Status), req.Note, req.EstimatedMinutes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Order status updated", order)
}

// --- payments ---

func (h *Handler) uploadProof(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Reference  string `json:"reference" binding:"required"`
		ProofImage string `json:"proof_image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.paymentService.UploadProof(c.Request.Context(), callerID(c), orderID, req.Reference, req.ProofImage)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Payment proof uploaded", order)
}

func (h *Handler) approveProof(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.paymentService.ApproveProof(c.Request.Context(), callerID(c), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Payment proof approved", order)
}

func (h *Handler) rejectProof(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	order, err := h.paymentService.RejectProof(c.Request.Context(), callerID(c), orderID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Payment proof rejected", order)
}

func (h *Handler) gatewayCallback(c *gin.Context) {
	var req struct {
		OrderID int64 `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.paymentService.HandleGatewayCallback(c.Request.Context(), req.OrderID); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Payment confirmed", nil)
}

// --- helpers ---

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(c, http.StatusBadRequest, "invalid order ID")
		return 0, false
	}
	return orderID, true
}

func parseOrderFilter(c *gin.Context) (store.OrderFilter, error) {
	var filter store.OrderFilter

	filter.Status = models.OrderStatus(c.Query("status"))
	filter.OrderType = models.OrderType(c.Query("order_type"))

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidQuery("from")
		}
		filter.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidQuery("to")
		}
		filter.To = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errInvalidQuery("limit")
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errInvalidQuery("offset")
		}
		filter.Offset = n
	}
	filter.SortAsc = c.Query("sort") == "asc"

	return filter, nil
}

type queryError string

func (e queryError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidQuery(name string) error { return queryError(name) }
