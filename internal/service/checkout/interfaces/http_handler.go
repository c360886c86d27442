// internal/service/checkout/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"kiosk/internal/service/checkout/application"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const serviceName = "checkout-kiosk"

// CheckoutHandler 封装了自助结账机的 HTTP 处理器。
// UI 的意图走 HTTP 进来，状态变更经 Hub 的 WebSocket 推回去。
type CheckoutHandler struct {
	camera   *application.CameraCoordinator
	payments *application.PaymentController
	hub      *Hub
}

// NewCheckoutHandler 创建一个新的 HTTP 处理器实例
func NewCheckoutHandler(camera *application.CameraCoordinator, payments *application.PaymentController, hub *Hub) *CheckoutHandler {
	return &CheckoutHandler{camera: camera, payments: payments, hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", h.hub.ServeWs)

	mux.HandleFunc("/api/state", h.stateHandler)

	mux.HandleFunc("/api/config/open", h.intent("config.Open", func(r *http.Request) error {
		return h.camera.OpenConfiguration(r.Context())
	}))
	mux.HandleFunc("/api/config/close", h.intent("config.Close", func(r *http.Request) error {
		return h.camera.CloseConfiguration(r.Context())
	}))
	mux.HandleFunc("/api/config/save", h.intent("config.Save", func(r *http.Request) error {
		return h.camera.SaveSettings(r.Context())
	}))
	mux.HandleFunc("/api/config/device", h.intent("config.SelectDevice", func(r *http.Request) error {
		deviceID, err := strconv.Atoi(r.URL.Query().Get("device_id"))
		if err != nil {
			return err
		}
		return h.camera.SelectDevice(r.Context(), deviceID)
	}))
	mux.HandleFunc("/api/config/tab", h.tabHandler)

	mux.HandleFunc("/api/camera/switch", h.intent("camera.Switch", func(r *http.Request) error {
		deviceID, err := strconv.Atoi(r.URL.Query().Get("device_id"))
		if err != nil {
			return err
		}
		return h.camera.SwitchCamera(r.Context(), deviceID)
	}))
	mux.HandleFunc("/api/camera/enable", h.intent("camera.Enable", func(r *http.Request) error {
		h.camera.SetCameraEnabled(r.Context(), r.URL.Query().Get("enabled") != "false")
		return nil
	}))

	mux.HandleFunc("/api/model/change", h.intent("model.Change", func(r *http.Request) error {
		return h.camera.ChangeModel(r.Context(), r.URL.Query().Get("model_id"))
	}))
	mux.HandleFunc("/api/model/labels", h.intent("model.Labels", func(r *http.Request) error {
		return h.camera.LoadModelLabels(r.Context())
	}))

	mux.HandleFunc("/api/checkout", h.intent("payment.Initiate", func(r *http.Request) error {
		return h.payments.InitiateCheckout(r.Context())
	}))
	mux.HandleFunc("/api/checkout/cancel", h.intent("payment.Cancel", func(r *http.Request) error {
		return h.payments.CancelCheckout(r.Context())
	}))
	mux.HandleFunc("/api/checkout/reset", h.intent("payment.Reset", func(r *http.Request) error {
		h.payments.ResetSession(r.Context())
		return nil
	}))
	mux.HandleFunc("/api/checkout/widget/open", h.intent("payment.ReopenWidget", func(r *http.Request) error {
		return h.payments.ReopenWidget(r.Context())
	}))
	mux.HandleFunc("/api/checkout/widget/callback", h.widgetCallbackHandler)

	mux.HandleFunc("/api/cart/clear", h.intent("cart.Clear", func(r *http.Request) error {
		return h.payments.ClearCart(r.Context())
	}))
	mux.HandleFunc("/api/cart/remove", h.intent("cart.Remove", func(r *http.Request) error {
		return h.payments.RemoveItem(r.Context(), r.URL.Query().Get("product_id"))
	}))
}

// intent 包装一个 UI 意图：提取追踪上下文、起 span、执行、回最小响应。
func (h *CheckoutHandler) intent(name string, fn func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		tracer := otel.Tracer(serviceName)
		ctx, span := tracer.Start(ctx, "api."+name)
		defer span.End()

		if err := fn(r.WithContext(ctx)); err != nil {
			span.RecordError(err)
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

func (h *CheckoutHandler) stateHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := application.StateSnapshot{
		Camera:  h.camera.Snapshot(),
		Payment: h.payments.Snapshot(),
		Cart:    h.payments.CartSnapshot(),
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *CheckoutHandler) tabHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(r.Context(), "api.config.ChangeTab")
	defer span.End()

	tab := r.URL.Query().Get("tab")
	span.SetAttributes(attribute.String("tab", tab))

	deferred, err := h.camera.ChangeTab(ctx, tab)
	if err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "accepted", "deferred": deferred})
}

// widgetCallbackHandler 接收 UI 侧支付组件的回调结果。
func (h *CheckoutHandler) widgetCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(r.Context(), "api.payment.WidgetCallback")
	defer span.End()

	result := application.WidgetResult(r.URL.Query().Get("result"))
	switch result {
	case application.WidgetSuccess, application.WidgetPending, application.WidgetError, application.WidgetClose:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown widget result"})
		return
	}
	span.SetAttributes(attribute.String("result", string(result)))

	h.payments.HandleWidgetResult(ctx, result)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
