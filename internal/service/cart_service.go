package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/model"
	"github.com/davazhoo/storefront/internal/pricing"
)

// CartRepositoryInterface defines the interface for cart data access.
type CartRepositoryInterface interface {
	GetByUser(ctx context.Context, userID int64) (*model.Cart, error)
	GetBySession(ctx context.Context, sessionKey string) (*model.Cart, error)
	Create(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, id int64) error
	SetCoupon(ctx context.Context, cartID int64, couponID *int64) error
	ListItems(ctx context.Context, cartID int64) ([]model.CartItem, error)
	GetItem(ctx context.Context, cartID, productID int64) (*model.CartItem, error)
	InsertItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, cartID, productID int64) error
	DeleteItems(ctx context.Context, cartID int64) error
	Touch(ctx context.Context, cartID int64) error
}

// ProductReader defines read access to live product data.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// CouponReader defines read access to coupons.
type CouponReader interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetByID(ctx context.Context, id int64) (*model.Coupon, error)
}

// CartIdentity names the single owner of a cart: an authenticated user or an
// anonymous session token, never both in one lookup preference. When both
// are present the user's cart wins and the session cart is merged into it.
type CartIdentity struct {
	UserID     *int64
	SessionKey *string
}

// CartService owns the cart aggregate: line mutations, coupon application
// and the merge-on-login fold. Mutations are single-statement last-write-wins;
// concurrent browser tabs race safely at that granularity.
type CartService struct {
	carts     CartRepositoryInterface
	products  ProductReader
	coupons   CouponReader
	validator *CouponValidator
}

// NewCartService creates a CartService with the given repositories.
func NewCartService(carts CartRepositoryInterface, products ProductReader, coupons CouponReader, validator *CouponValidator) *CartService {
	return &CartService{
		carts:     carts,
		products:  products,
		coupons:   coupons,
		validator: validator,
	}
}

// getOrCreate fetches the identity's cart, creating it lazily on first
// interaction. When both identities are present the anonymous cart is folded
// into the user's cart first.
func (s *CartService) getOrCreate(ctx context.Context, id CartIdentity) (*model.Cart, error) {
	if id.UserID != nil {
		cart, err := s.carts.GetByUser(ctx, *id.UserID)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			cart = &model.Cart{UserID: id.UserID}
			if err := s.carts.Create(ctx, cart); err != nil {
				return nil, err
			}
		}
		if id.SessionKey != nil {
			if err := s.mergeSessionInto(ctx, cart, *id.SessionKey); err != nil {
				return nil, err
			}
		}
		return cart, nil
	}

	if id.SessionKey == nil {
		return nil, fmt.Errorf("cart identity has neither user nor session")
	}
	cart, err := s.carts.GetBySession(ctx, *id.SessionKey)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &model.Cart{SessionKey: id.SessionKey}
		if err := s.carts.Create(ctx, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// Get returns the cart with derived totals. The applied coupon is
// re-validated here; an invalid one contributes zero discount but stays
// attached so the user can see and remove it.
func (s *CartService) Get(ctx context.Context, id CartIdentity) (*model.CartView, error) {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, cart, id.UserID)
}

func (s *CartService) buildView(ctx context.Context, cart *model.Cart, userID *int64) (*model.CartView, error) {
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &model.CartView{Items: []model.CartItemView{}}
	for i := range items {
		item := &items[i]
		iv := model.CartItemView{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			PriceSnapshot: item.PriceSnapshot,
			TotalPrice:    item.TotalPrice(),
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		switch {
		case errors.Is(err, ErrProductNotFound):
			iv.Available = false
		case err != nil:
			return nil, err
		default:
			iv.ProductName = product.Name
			iv.Available = product.Available(item.Quantity)
		}
		view.Items = append(view.Items, iv)
		view.ItemsCount += item.Quantity
	}

	view.Subtotal = pricing.Subtotal(items)

	if cart.CouponID != nil {
		coupon, err := s.coupons.GetByID(ctx, *cart.CouponID)
		switch {
		case errors.Is(err, ErrCouponNotFound):
			// coupon deleted since it was applied; contributes nothing
		case err != nil:
			return nil, err
		default:
			view.CouponCode = coupon.Code
			if vErr := s.validator.Validate(ctx, coupon, userID, view.Subtotal); vErr == nil {
				view.DiscountAmount = pricing.Discount(coupon, view.Subtotal)
			} else if !IsCouponInvalid(vErr) {
				return nil, vErr
			}
		}
	}

	view.Total = pricing.Total(view.Subtotal, view.DiscountAmount)
	return view, nil
}

// AddItem puts quantity units of a product into the cart. An existing line
// accumulates; the result is clamped to min(stock, per-user cap) rather than
// rejected. The price snapshot is taken on first add only.
func (s *CartService) AddItem(ctx context.Context, id CartIdentity, productID int64, quantity int) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	return s.addToCart(ctx, cart, productID, quantity)
}

func (s *CartService) addToCart(ctx context.Context, cart *model.Cart, productID int64, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	cap := product.MaxOrderable()
	if !product.IsActive || cap < 1 {
		return fmt.Errorf("%s: %w", product.Name, ErrProductUnavailable)
	}

	item, err := s.carts.GetItem(ctx, cart.ID, productID)
	if err != nil {
		return err
	}

	if item == nil {
		if quantity > cap {
			quantity = cap
		}
		item = &model.CartItem{
			CartID:        cart.ID,
			ProductID:     productID,
			Quantity:      quantity,
			PriceSnapshot: product.Price,
		}
		if err := s.carts.InsertItem(ctx, item); err != nil {
			return err
		}
	} else {
		next := item.Quantity + quantity
		if next > cap {
			next = cap
		}
		if err := s.carts.UpdateItemQuantity(ctx, item.ID, next); err != nil {
			return err
		}
	}
	return s.carts.Touch(ctx, cart.ID)
}

// UpdateQuantity sets a line's quantity; zero or less removes the line, and
// anything above the cap clamps down to it.
func (s *CartService) UpdateQuantity(ctx context.Context, id CartIdentity, productID int64, quantity int) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}

	if quantity <= 0 {
		if err := s.carts.DeleteItem(ctx, cart.ID, productID); err != nil {
			return err
		}
		return s.carts.Touch(ctx, cart.ID)
	}

	item, err := s.carts.GetItem(ctx, cart.ID, productID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrCartItemNotFound
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if cap := product.MaxOrderable(); quantity > cap {
		quantity = cap
	}
	if quantity < 1 {
		quantity = 1
	}

	if err := s.carts.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return err
	}
	return s.carts.Touch(ctx, cart.ID)
}

// RemoveItem deletes a product's line; removing an absent line is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, id CartIdentity, productID int64) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.carts.DeleteItem(ctx, cart.ID, productID); err != nil {
		return err
	}
	return s.carts.Touch(ctx, cart.ID)
}

// Clear empties the cart and detaches any applied coupon.
func (s *CartService) Clear(ctx context.Context, id CartIdentity) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.carts.DeleteItems(ctx, cart.ID); err != nil {
		return err
	}
	return s.carts.SetCoupon(ctx, cart.ID, nil)
}

// ApplyCoupon validates the code against the current subtotal and attaches
// it on success. On any failure the cart's previously applied coupon is left
// unchanged; a missing code is reported distinctly from an invalid one.
func (s *CartService) ApplyCoupon(ctx context.Context, id CartIdentity, code string) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return err
	}
	subtotal := pricing.Subtotal(items)

	if err := s.validator.Validate(ctx, coupon, id.UserID, subtotal); err != nil {
		return err
	}
	return s.carts.SetCoupon(ctx, cart.ID, &coupon.ID)
}

// RemoveCoupon detaches the applied coupon, if any.
func (s *CartService) RemoveCoupon(ctx context.Context, id CartIdentity) error {
	cart, err := s.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	return s.carts.SetCoupon(ctx, cart.ID, nil)
}

// Merge folds the anonymous session cart into the just-authenticated user's
// cart and deletes the session cart. Safe to call when either cart is absent
// and idempotent on repeat delivery.
func (s *CartService) Merge(ctx context.Context, userID int64, sessionKey string) error {
	cart, err := s.getOrCreate(ctx, CartIdentity{UserID: &userID})
	if err != nil {
		return err
	}
	return s.mergeSessionInto(ctx, cart, sessionKey)
}

func (s *CartService) mergeSessionInto(ctx context.Context, cart *model.Cart, sessionKey string) error {
	sessionCart, err := s.carts.GetBySession(ctx, sessionKey)
	if err != nil {
		return err
	}
	if sessionCart == nil {
		return nil
	}

	items, err := s.carts.ListItems(ctx, sessionCart.ID)
	if err != nil {
		return err
	}
	for i := range items {
		err := s.addToCart(ctx, cart, items[i].ProductID, items[i].Quantity)
		if err != nil && !errors.Is(err, ErrProductUnavailable) && !errors.Is(err, ErrProductNotFound) {
			return err
		}
		if err != nil {
			log.Warn().
				Int64("product_id", items[i].ProductID).
				Msg("skipping unavailable product during cart merge")
		}
	}
	return s.carts.Delete(ctx, sessionCart.ID)
}
