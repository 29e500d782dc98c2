package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/session"
)

const (
	msgInvalidQuantity   = "Invalid quantity!"
	msgRemoved           = "Successfully removed!"
	msgQuantityChanged   = "Quantity changed!"
	msgPurchaseCompleted = "Purchase completed!"
	msgEmailSent         = "Email sent!"
)

type ProductCatalog interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type ContactMailer interface {
	Contact(ctx context.Context, email, message string) error
}

type PlacesSource interface {
	PlacesJSON(ctx context.Context) ([]byte, error)
}

type Handler struct {
	products ProductCatalog
	sessions *session.Manager
	checkout *checkout.Service
	mailer   ContactMailer
	places   PlacesSource
	views    *Views
	shop     config.ShopConfig
	logger   *slog.Logger
}

func NewHandler(products ProductCatalog, sessions *session.Manager, checkoutService *checkout.Service, mailer ContactMailer, places PlacesSource, views *Views, shop config.ShopConfig, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		sessions: sessions,
		checkout: checkoutService,
		mailer:   mailer,
		places:   places,
		views:    views,
		shop:     shop,
		logger:   logger,
	}
}

type pageData struct {
	Title     string
	Shop      config.ShopConfig
	Year      int
	Errors    []string
	Successes []string
	CartCount int
}

type homePage struct {
	pageData
	Products []domain.Product
}

type checkoutPage struct {
	pageData
	Lines       []domain.CartLine
	TotalPrice  int64
	ShippingFee int64
	GrandTotal  int64
	Unselected  string
}

func (h *Handler) newPage(title string, flash map[string][]string, cartCount int) pageData {
	return pageData{
		Title:     title,
		Shop:      h.shop,
		Year:      time.Now().Year(),
		Errors:    flash[session.FlashError],
		Successes: flash[session.FlashSuccess],
		CartCount: cartCount,
	}
}

func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	var flash map[string][]string
	sess, err := h.sessions.Update(r, func(s *session.Session) error {
		flash = s.PopFlash()
		return nil
	})
	if err != nil {
		h.logger.Error("failed to load session", "error", err)
		sess = &session.Session{}
	}

	products, err := h.products.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := homePage{
		pageData: h.newPage(h.shop.Title, flash, sess.CartQuantity()),
		Products: products,
	}
	h.render(w, http.StatusOK, "index", data)
}

func (h *Handler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	qty, ok := parseQuantity(r.PostFormValue("qty"))
	if !ok {
		h.flash(r, session.FlashError, msgInvalidQuantity)
		h.redirect(w, r, "/checkout")
		return
	}

	product, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			h.logger.Error("failed to get product", "error", err, "product_id", productID)
		}
		h.redirect(w, r, "/")
		return
	}

	_, err = h.sessions.Update(r, func(s *session.Session) error {
		s.CartOrNew().Add(*product, product.ID, qty)
		s.AddFlash(session.FlashSuccess, addedMessage(qty))
		return nil
	})
	if err != nil {
		h.logger.Error("failed to update cart", "error", err, "product_id", productID)
		h.flash(r, session.FlashError, checkout.MsgSomethingFailed)
		h.redirect(w, r, "/")
		return
	}

	h.logger.Info("product added to cart", "product_id", productID, "qty", qty)
	h.redirect(w, r, "/")
}

func addedMessage(qty int) string {
	if qty > 1 {
		return fmt.Sprintf("%d products added to cart!", qty)
	}
	return fmt.Sprintf("%d product added to cart!", qty)
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	empty := false
	var flash map[string][]string

	sess, err := h.sessions.Update(r, func(s *session.Session) error {
		if s.Cart.IsEmpty() {
			empty = true
			s.AddFlash(session.FlashError, checkout.MsgEmptyCart)
			return nil
		}
		flash = s.PopFlash()
		return nil
	})
	if err != nil {
		h.logger.Error("failed to load session", "error", err)
		h.redirect(w, r, "/")
		return
	}
	if empty {
		h.redirect(w, r, "/")
		return
	}

	cart := sess.Cart
	data := checkoutPage{
		pageData:    h.newPage("Checkout", flash, cart.TotalQuantity),
		Lines:       cart.LineList(),
		TotalPrice:  cart.TotalPrice,
		ShippingFee: h.shop.ShippingFee,
		GrandTotal:  cart.TotalPrice + h.shop.ShippingFee,
		Unselected:  h.shop.UnselectedDestination,
	}
	h.render(w, http.StatusOK, "checkout", data)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	empty := false

	_, err := h.sessions.Update(r, func(s *session.Session) error {
		cart := s.CartOrNew()
		cart.Remove(productID)
		if cart.IsEmpty() {
			empty = true
			s.ClearCart()
			s.AddFlash(session.FlashError, checkout.MsgEmptyCart)
			return nil
		}
		s.AddFlash(session.FlashSuccess, msgRemoved)
		return nil
	})
	if err != nil {
		h.logger.Error("failed to update cart", "error", err, "product_id", productID)
		h.redirect(w, r, "/")
		return
	}

	if empty {
		h.redirect(w, r, "/")
		return
	}
	h.redirect(w, r, "/checkout")
}

func (h *Handler) HandleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	qty, ok := parseQuantity(r.PostFormValue("qty"))
	if !ok {
		h.flash(r, session.FlashError, msgInvalidQuantity)
		h.redirect(w, r, "/checkout")
		return
	}

	if _, err := h.products.GetByID(r.Context(), productID); err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			h.logger.Error("failed to get product", "error", err, "product_id", productID)
		}
		h.redirect(w, r, "/checkout")
		return
	}

	_, err := h.sessions.Update(r, func(s *session.Session) error {
		if s.Cart != nil && s.Cart.ChangeQuantity(productID, qty) {
			s.AddFlash(session.FlashSuccess, msgQuantityChanged)
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to update cart", "error", err, "product_id", productID)
		h.flash(r, session.FlashError, checkout.MsgSomethingFailed)
	}

	h.redirect(w, r, "/checkout")
}

func (h *Handler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("failed to load session", "error", err)
		h.flash(r, session.FlashError, checkout.MsgSomethingFailed)
		h.redirect(w, r, "/checkout")
		return
	}

	form := checkout.OrderForm{
		Terms:       r.PostFormValue("terms") == "true" || r.PostFormValue("terms") == "on",
		FirstName:   r.PostFormValue("firstName"),
		LastName:    r.PostFormValue("lastName"),
		Email:       r.PostFormValue("email"),
		Phone:       r.PostFormValue("tel"),
		Destination: r.PostFormValue("destination"),
	}

	paymentURL, err := h.checkout.PlaceOrder(r.Context(), sess.Cart, form, clientIP(r))
	if err != nil {
		var vErr *checkout.ValidationError
		if !errors.As(err, &vErr) {
			h.logger.Error("failed to place order", "error", err)
		}
		h.flash(r, session.FlashError, checkout.Notice(err))
		if errors.Is(err, checkout.ErrEmptyCart) {
			h.redirect(w, r, "/")
			return
		}
		h.redirect(w, r, "/checkout")
		return
	}

	h.redirect(w, r, paymentURL)
}

// HandleOrderNotification always answers with a redirect; problems are only
// logged so the gateway never sees an internal error.
func (h *Handler) HandleOrderNotification(w http.ResponseWriter, r *http.Request) {
	notification, err := checkout.ParseNotification(r.PostFormValue("json"))
	if err != nil {
		h.logger.Warn("invalid payment notification", "error", err)
		h.redirect(w, r, "/")
		return
	}

	if err := h.checkout.HandleNotification(r.Context(), notification); err != nil {
		h.logger.Warn("payment notification not applied", "error", err,
			"reference", notification.Reference, "status", notification.Status)
	}

	h.redirect(w, r, "/")
}

func (h *Handler) HandleSuccessfulPurchase(w http.ResponseWriter, r *http.Request) {
	_, err := h.sessions.Update(r, func(s *session.Session) error {
		s.ClearCart()
		s.AddFlash(session.FlashSuccess, msgPurchaseCompleted)
		return nil
	})
	if err != nil {
		h.logger.Error("failed to clear cart", "error", err)
	}

	h.redirect(w, r, "/")
}

func (h *Handler) HandleSendEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	if !h.checkout.IsEmail(email) {
		h.flash(r, session.FlashError, checkout.MsgInvalidEmail)
		h.redirect(w, r, "/")
		return
	}

	if err := h.mailer.Contact(r.Context(), email, r.PostFormValue("message")); err != nil {
		h.logger.Error("failed to send contact email", "error", err)
	}

	h.flash(r, session.FlashSuccess, msgEmailSent)
	h.redirect(w, r, "/")
}

func (h *Handler) HandleSmartpost(w http.ResponseWriter, r *http.Request) {
	data, err := h.places.PlacesJSON(r.Context())
	if err != nil {
		h.logger.Error("failed to get smartpost places", "error", err)
		h.writeError(w, http.StatusBadGateway, "destinations unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) HandlePrivacyPolicy(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		sess = &session.Session{}
	}
	h.render(w, http.StatusOK, "privacy", h.newPage("Privacy policy", nil, sess.CartQuantity()))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/")
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if err := h.sessions.Flash(r, kind, message); err != nil {
		h.logger.Error("failed to store notice", "error", err)
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Error("failed to render page", "error", err, "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// parseQuantity accepts positive integers only.
func parseQuantity(raw string) (int, bool) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || qty < 1 {
		return 0, false
	}
	return qty, true
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
