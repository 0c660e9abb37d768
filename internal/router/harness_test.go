package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"julianmorley.ca/con-plar/marketplace/internal/memstore"
	"julianmorley.ca/con-plar/marketplace/pkg/ai"
	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/cart"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/payments"
	"julianmorley.ca/con-plar/marketplace/pkg/redis"
	"julianmorley.ca/con-plar/marketplace/pkg/settlement"
)

const testGatewaySecret = "test_secret"

type stubGateway struct {
	mu    sync.Mutex
	fail  bool
	count int
}

func (g *stubGateway) CreateOrder(_ context.Context, req payments.OrderRequest) (*payments.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, fmt.Errorf("%w: connection refused", payments.ErrGatewayUnavailable)
	}
	g.count++
	return &payments.GatewayOrder{
		ID:       fmt.Sprintf("order_test%04d", g.count),
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type testServer struct {
	tb      testing.TB
	router  *gin.Engine
	store   *memstore.Store
	redis   *miniredis.Miniredis
	issuer  *auth.Issuer
	signer  *payments.Signer
	gateway *stubGateway

	buyer, otherBuyer, seller, otherSeller, admin *models.Customer
	productA, productB                            *models.Product
}

func newTestServer(tb testing.TB) *testServer {
	tb.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zaptest.NewLogger(tb)

	store := memstore.New()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(mr.Addr(), "")
	tb.Cleanup(func() { _ = client.Close() })

	ts := &testServer{
		tb:      tb,
		store:   store,
		redis:   mr,
		issuer:  auth.NewIssuer("jwt_secret", time.Hour),
		signer:  payments.NewSigner(testGatewaySecret),
		gateway: &stubGateway{},
	}

	ts.buyer = ts.seedCustomer("buyer@example.com", models.RoleBuyer)
	ts.otherBuyer = ts.seedCustomer("other@example.com", models.RoleBuyer)
	ts.seller = ts.seedCustomer("seller@example.com", models.RoleSeller)
	ts.otherSeller = ts.seedCustomer("other-seller@example.com", models.RoleSeller)
	ts.admin = ts.seedCustomer("admin@example.com", models.RoleAdmin)

	ts.productA = &models.Product{SellerID: ts.seller.ID, Name: "Desk lamp", Category: "home", Price: 500, Currency: "INR", Status: "active", CreatedAt: time.Now()}
	ts.productB = &models.Product{SellerID: ts.seller.ID, Name: "Mug", Category: "kitchen", Price: 300, Currency: "INR", Status: "active", CreatedAt: time.Now()}
	require.NoError(tb, store.CreateProduct(ctx, ts.productA))
	require.NoError(tb, store.CreateProduct(ctx, ts.productB))

	carts := cart.NewService(store, store, store, redis.NewCartCache(client), models.DefaultPricing, log)
	engine := settlement.NewEngine(settlement.Deps{
		Store:    store,
		Buyers:   store,
		Gateway:  ts.gateway,
		Signer:   ts.signer,
		Carts:    carts,
		Currency: "INR",
		Logger:   log,
	})
	handler := NewHandler(HandlerDeps{
		Store:    store,
		Carts:    carts,
		Engine:   engine,
		Orders:   settlement.NewOrders(store, nil, log),
		Issuer:   ts.issuer,
		Products: redis.NewProductCache(client),
		AI:       ai.NewClient(ai.Config{}, log),
		Currency: "INR",
		Logger:   log,
	})

	ts.router = InitEngine(&global.Config{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}, log)
	InitializeRoutes(ts.router, handler)
	return ts
}

func (ts *testServer) seedCustomer(email string, role models.Role) *models.Customer {
	hashed, err := auth.HashPassword("password123")
	require.NoError(ts.tb, err)
	c := &models.Customer{
		Email:         email,
		Password:      hashed,
		FirstName:     "Test",
		LastName:      string(role),
		Role:          role,
		AccountStatus: "active",
		Addresses: []models.Address{{
			FullName: "Test Buyer", Street: "1 Main St", City: "Pune", State: "MH",
			PostalCode: "411001", Country: "IN", IsDefault: true,
		}},
	}
	require.NoError(ts.tb, ts.store.CreateCustomer(context.Background(), c))
	return c
}

func (ts *testServer) token(c *models.Customer) string {
	token, _, err := ts.issuer.Issue(c)
	require.NoError(ts.tb, err)
	return token
}

func (ts *testServer) do(method, path string, as *models.Customer, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.tb, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+ts.token(as))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
	Errors  []global.ValidationError `json:"errors"`
}

func decode(tb testing.TB, rec *httptest.ResponseRecorder, into interface{}) {
	tb.Helper()
	require.NoError(tb, json.Unmarshal(rec.Body.Bytes(), into), rec.Body.String())
}

func (ts *testServer) envelope(rec *httptest.ResponseRecorder) envelope {
	var env envelope
	decode(ts.tb, rec, &env)
	return env
}

func (ts *testServer) data(rec *httptest.ResponseRecorder, into interface{}) {
	env := ts.envelope(rec)
	require.NoError(ts.tb, json.Unmarshal(env.Data, into), string(env.Data))
}

type createOrderResponse struct {
	Success         bool                  `json:"success"`
	Order           payments.GatewayOrder `json:"order"`
	PaymentRecordID string                `json:"payment_record_id"`
	RazorpayKeyID   string                `json:"razorpay_key_id"`
	Message         string                `json:"message"`
}

type verifyData struct {
	Payment  models.PaymentIntent `json:"payment"`
	Order    models.Order         `json:"order"`
	Replayed bool                 `json:"replayed"`
}

func (ts *testServer) addToCart(as *models.Customer, product *models.Product, qty int) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/api/cart/add", as, gin.H{
		"user_id":    as.ID.Hex(),
		"product_id": product.ID.Hex(),
		"quantity":   qty,
	})
}

func (ts *testServer) createOrder(as *models.Customer) createOrderResponse {
	rec := ts.do(http.MethodPost, "/api/payments/create_order", as, gin.H{"user_id": as.ID.Hex()})
	var out createOrderResponse
	decode(ts.tb, rec, &out)
	return out
}

func (ts *testServer) verify(as *models.Customer, gatewayOrderID, paymentID, signature string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/api/payments/verify", as, gin.H{
		"user_id":             as.ID.Hex(),
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	})
}
