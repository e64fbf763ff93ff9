package handler

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/thriftx/storefront/internal/domain/cart"
	"github.com/thriftx/storefront/internal/domain/coupon"
	"github.com/thriftx/storefront/internal/domain/order"
	"github.com/thriftx/storefront/internal/domain/pricing"
	"github.com/thriftx/storefront/internal/domain/product"
	"github.com/thriftx/storefront/internal/domain/report"
)

const maxBodyBytes = 64 << 10

// badRequest is a client input error reported verbatim with status 400.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

type requestBody interface {
	decode(d *jx.Decoder) error
}

// decodeBody reads a JSON object into v and runs its validate tags.
func (h *Handler) decodeBody(r *http.Request, v requestBody) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodyBytes), 1024)
	if err := v.decode(d); err != nil {
		return &badRequest{msg: "malformed request body: " + err.Error()}
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			msg := "invalid " + fe.Field() + ": failed " + fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			return &badRequest{msg: msg}
		}
		return errors.Wrap(err, "validate request")
	}
	return nil
}

type addItemRequest struct {
	ProductID string `validate:"required,max=64"`
	Quantity  int    `validate:"gte=1,lte=99"`
}

func (req *addItemRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

type setQuantityRequest struct {
	Quantity int `validate:"gte=0,lte=99"`
}

func (req *setQuantityRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			v, err := d.Int()
			req.Quantity = v
			return err
		}
		return d.Skip()
	})
}

type checkoutRequest struct {
	CouponCode string `validate:"max=32"`
}

func (req *checkoutRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key == "couponCode" {
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			req.CouponCode = v
			return err
		}
		return d.Skip()
	})
}

type couponCheckRequest struct {
	Subtotal int64 `validate:"gte=0"`
}

func (req *couponCheckRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key == "subtotal" {
			v, err := d.Int64()
			req.Subtotal = v
			return err
		}
		return d.Skip()
	})
}

type createCouponRequest struct {
	Code          string `validate:"required,max=32"`
	DiscountType  string `validate:"required"`
	DiscountValue decimal.Decimal
	MinOrderValue int64  `validate:"gte=0"`
	ExpiresOn     string `validate:"omitempty,datetime=2006-01-02"`
	Description   string `validate:"max=500"`
}

func (req *createCouponRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "discountType":
			req.DiscountType, err = d.Str()
		case "discountValue":
			req.DiscountValue, err = decodeDecimal(d)
		case "minOrderValue":
			req.MinOrderValue, err = d.Int64()
		case "expiresOn":
			req.ExpiresOn, err = d.Str()
		case "description":
			req.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (req *createCouponRequest) params() coupon.CreateParams {
	p := coupon.CreateParams{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderValue: req.MinOrderValue,
		Description:   req.Description,
	}
	if req.ExpiresOn != "" {
		// Format was checked by the datetime tag.
		p.ExpiresOn, _ = time.Parse(time.DateOnly, req.ExpiresOn)
	}
	return p
}

// decodeDecimal accepts both 12.5 and "12.5".
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

type imageBody struct {
	Thumbnail string `validate:"max=2048"`
	Mobile    string `validate:"max=2048"`
	Tablet    string `validate:"max=2048"`
	Desktop   string `validate:"max=2048"`
}

func (img *imageBody) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "thumbnail":
			img.Thumbnail, err = d.Str()
		case "mobile":
			img.Mobile, err = d.Str()
		case "tablet":
			img.Tablet, err = d.Str()
		case "desktop":
			img.Desktop, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type createProductRequest struct {
	Name      string `validate:"required,max=200"`
	Brand     string `validate:"max=100"`
	Size      string `validate:"max=32"`
	Condition string `validate:"max=32"`
	Category  string `validate:"required,max=100"`
	Price     int64  `validate:"gte=0"`
	Stock     int    `validate:"gte=1,lte=10000"`
	Image     imageBody
}

func (req *createProductRequest) decode(d *jx.Decoder) error {
	req.Stock = 1
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "brand":
			req.Brand, err = d.Str()
		case "size":
			req.Size, err = d.Str()
		case "condition":
			req.Condition, err = d.Str()
		case "category":
			req.Category, err = d.Str()
		case "price":
			req.Price, err = d.Int64()
		case "stock":
			req.Stock, err = d.Int()
		case "image":
			err = req.Image.decode(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

type statusRequest struct {
	Status string `validate:"required"`
}

func (req *statusRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key == "status" {
			v, err := d.Str()
			req.Status = v
			return err
		}
		return d.Skip()
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("sellerId")
	e.Str(p.SellerID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("brand")
	e.Str(p.Brand)
	e.FieldStart("size")
	e.Str(p.Size)
	e.FieldStart("condition")
	e.Str(p.Condition)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("status")
	e.Str(string(p.Status))
	e.FieldStart("image")
	e.ObjStart()
	e.FieldStart("thumbnail")
	e.Str(h.imageURL(p.Image.Thumbnail))
	e.FieldStart("mobile")
	e.Str(h.imageURL(p.Image.Mobile))
	e.FieldStart("tablet")
	e.Str(h.imageURL(p.Image.Tablet))
	e.FieldStart("desktop")
	e.Str(h.imageURL(p.Image.Desktop))
	e.ObjEnd()
	e.ObjEnd()
}

func (h *Handler) encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for _, p := range ps {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeBreakdownFields(e *jx.Encoder, b pricing.Breakdown) {
	e.FieldStart("subtotal")
	e.Int64(b.Subtotal)
	e.FieldStart("discount")
	e.Int64(b.Discount)
	e.FieldStart("deliveryFee")
	e.Int64(b.DeliveryFee)
	e.FieldStart("total")
	e.Int64(b.Total)
	e.FieldStart("policy")
	e.Str(string(b.Policy))
	if b.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(b.CouponCode)
	}
}

func (h *Handler) encodeCartItems(e *jx.Encoder, items []cart.Item) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("lineTotal")
		e.Int64(it.Product.Price * int64(it.Quantity))
		e.FieldStart("product")
		h.encodeProduct(e, it.Product)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func (h *Handler) encodeCartView(e *jx.Encoder, v *cart.View) {
	e.ObjStart()
	e.FieldStart("items")
	h.encodeCartItems(e, v.Items)
	e.FieldStart("unavailable")
	h.encodeCartItems(e, v.Unavailable)
	e.FieldStart("breakdown")
	e.ObjStart()
	encodeBreakdownFields(e, v.Breakdown)
	e.ObjEnd()
	if v.Coupon != nil {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(v.Coupon.Code)
		e.FieldStart("applied")
		e.Bool(v.Coupon.Applied)
		if v.Coupon.Reason != "" {
			e.FieldStart("reason")
			e.Str(v.Coupon.Reason)
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("shopperId")
	e.Str(o.ShopperID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("category")
		e.Str(it.Category)
		e.FieldStart("unitPrice")
		e.Int64(it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	encodeBreakdownFields(e, pricing.Breakdown{
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		DeliveryFee: o.DeliveryFee,
		Total:       o.Total,
		Policy:      o.Policy,
		CouponCode:  o.CouponCode,
	})
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	e.Str(c.DiscountValue.String())
	e.FieldStart("minOrderValue")
	e.Int64(c.MinOrderValue)
	e.FieldStart("status")
	e.Str(string(c.Status))
	if !c.ExpiresAt.IsZero() {
		e.FieldStart("expiresAt")
		e.Str(c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if c.Description != "" {
		e.FieldStart("description")
		e.Str(c.Description)
	}
	e.ObjEnd()
}

func encodePreview(e *jx.Encoder, p *coupon.Preview) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(p.Coupon.Code)
	e.FieldStart("eligible")
	e.Bool(p.Eligible)
	if p.Reason != "" {
		e.FieldStart("reason")
		e.Str(string(p.Reason))
	}
	if p.Reason == pricing.ReasonBelowMinimum {
		e.FieldStart("minOrderValue")
		e.Int64(p.Coupon.MinOrderValue)
	}
	e.FieldStart("discount")
	e.Int64(p.Discount)
	e.ObjEnd()
}

// encodeCounts writes m as an object with sorted keys.
func encodeCounts[K ~string, V int | int64](e *jx.Encoder, m map[K]V) {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	e.ObjStart()
	for _, k := range keys {
		e.FieldStart(string(k))
		e.Int64(int64(m[k]))
	}
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *report.Summary) {
	e.ObjStart()
	e.FieldStart("from")
	e.Str(s.Period.From.UTC().Format(time.RFC3339))
	e.FieldStart("to")
	e.Str(s.Period.To.UTC().Format(time.RFC3339))
	e.FieldStart("gmv")
	e.Int64(s.GMV)
	e.FieldStart("orders")
	e.Int(s.Orders)
	e.FieldStart("averageOrderValue")
	e.Int64(s.AverageOrderValue)
	e.FieldStart("previousGmv")
	e.Int64(s.PreviousGMV)
	e.FieldStart("growthPercent")
	if s.GrowthPercent == nil {
		e.Null()
	} else {
		e.Num(jx.Num(s.GrowthPercent.String()))
	}
	e.FieldStart("statusCounts")
	encodeCounts(e, s.StatusCounts)
	e.FieldStart("categoryCounts")
	encodeCounts(e, s.CategoryCounts)
	e.FieldStart("discountByPolicy")
	encodeCounts(e, s.DiscountByPolicy)
	e.ObjEnd()
}

func encodeSellerStats(e *jx.Encoder, st *report.SellerStats) {
	e.ObjStart()
	e.FieldStart("sellerId")
	e.Str(st.SellerID)
	e.FieldStart("listed")
	e.Int(st.Listed)
	e.FieldStart("available")
	e.Int(st.Available)
	e.FieldStart("soldUnits")
	e.Int(st.SoldUnits)
	e.FieldStart("revenue")
	e.Int64(st.Revenue)
	e.ObjEnd()
}
