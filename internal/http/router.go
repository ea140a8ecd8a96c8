package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/checkout"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/config"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/notify"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

type Deps struct {
	Logger *log.Logger
	Cfg    config.Config

	Catalog  catalog.Repository
	Carts    *cart.Service
	Checkout *checkout.Service
	Orders   order.Repository
	Payments *payment.Service
	Hub      *notify.Hub
}

func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(chimw.Logger)
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.CORS(d.Cfg.CORSAllowOrigins))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(d.Cfg.SessionCookie))

			// long-lived, so outside the request timeout
			r.Get("/orders/{orderId}/ws", h.OrderUpdates)

			r.Group(func(r chi.Router) {
				if d.Cfg.RequestTimeout > 0 {
					r.Use(chimw.Timeout(d.Cfg.RequestTimeout))
				}

				r.Get("/stores/{slug}/products", h.StoreProducts)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", h.GetCart)
					r.Delete("/", h.ClearCart)
					r.Post("/items", h.AddItem)
					r.Put("/items/{productId}", h.UpdateItem)
					r.Delete("/items/{productId}", h.RemoveItem)
					r.Put("/items/{productId}/shipping", h.SelectShipping)
					r.Put("/items/{productId}/delivery", h.SetDelivery)
					r.Post("/coupon", h.ApplyCoupon)
					r.Delete("/coupon", h.RemoveCoupon)
				})

				r.Get("/checkout", h.PreviewCheckout)
				r.Post("/checkout", h.PlaceOrder)

				r.Get("/orders", h.ListOrders)
				r.Get("/orders/{orderId}", h.GetOrder)
				r.Get("/orders/{orderId}/payments", h.ListPayments)
				r.Post("/orders/{orderId}/payments", h.StartPayment)

				r.Get("/payments/transbank/return", h.TransbankReturn)
				r.Post("/payments/transbank/return", h.TransbankReturn)
				r.Post("/payments/{paymentId}/simulate", h.SimulatePayment)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminJWT(d.Cfg.AdminJWTSecret))
			if d.Cfg.RequestTimeout > 0 {
				r.Use(chimw.Timeout(d.Cfg.RequestTimeout))
			}
			r.Put("/products/{productId}/stock", h.SetStock)
			r.Get("/products/low-stock", h.LowStock)
			r.Post("/payments/{paymentId}/paid", h.AdminMarkPaid)
			r.Post("/payments/{paymentId}/failed", h.AdminMarkFailed)
		})
	})

	return r
}
