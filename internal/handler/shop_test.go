package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/handler"
	"pd-shop-api/internal/model"
	"pd-shop-api/internal/repository"
	"pd-shop-api/internal/router"
	"pd-shop-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *docstore.MemoryStore, repository.Collections) {
	t.Helper()

	store := docstore.NewMemoryStore()
	collections := repository.NewCollections(false)
	itemRepo := repository.NewDocstoreItemRepository(store, collections)
	statsRepo := repository.NewDocstoreStatsRepository(store, collections)
	activityRepo := repository.NewDocstoreActivityRecorder(store)

	shopService := service.NewShopService(service.ShopServiceConfig{
		Store:       store,
		Collections: collections,
		Items:       itemRepo,
		Sink:        activityRepo,
	})
	require.NotNil(t, shopService)

	r := router.New(router.Config{
		Handler:      handler.New("test"),
		ShopHandler:  handler.NewShopHandler(shopService),
		AdminHandler: handler.NewAdminHandler(itemRepo, statsRepo, activityRepo, nil, "memory"),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, collections
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, apiEnvelope) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestListItemsEndpoint(t *testing.T) {
	srv, store, collections := newTestServer(t)

	item := model.ShopItem{Name: "A1", GpPrice: 500, ItemType: model.ItemTypeGiftPointsToUsdPack, Quantity: 10}
	require.NoError(t, store.Set(context.Background(), collections.Items, "i1", item))

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/shop/items", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	var data struct {
		Items []model.ShopItem `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 1, data.Count)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "A1", data.Items[0].Name)
}

func TestBuyEndpoint(t *testing.T) {
	srv, store, collections := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, collections.Users, "u1", model.User{GiftPoints: 500}))
	require.NoError(t, store.Set(ctx, collections.Items, "i1", model.ShopItem{
		Name:      "A1",
		GpPrice:   500,
		UsdReturn: decimal.NewFromFloat(2.5),
		ItemType:  model.ItemTypeGiftPointsToUsdPack,
		Quantity:  10,
	}))

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/shop/items/i1/buy", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	doc, err := store.Get(ctx, collections.Users, "u1")
	require.NoError(t, err)
	var user model.User
	require.NoError(t, doc.Decode(&user))
	assert.Equal(t, int64(0), user.GiftPoints)
}

func TestBuyEndpointErrorMapping(t *testing.T) {
	srv, store, collections := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, collections.Users, "broke", model.User{GiftPoints: 1}))
	require.NoError(t, store.Set(ctx, collections.Items, "i1", model.ShopItem{
		Name:     "A1",
		GpPrice:  500,
		ItemType: model.ItemTypeGiftPointsToUsdPack,
		Quantity: 10,
	}))

	t.Run("missing body field", func(t *testing.T) {
		resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/shop/items/i1/buy", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "BAD_REQUEST", envelope.Error.Code)
	})

	t.Run("unknown item", func(t *testing.T) {
		resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/shop/items/nope/buy", `{"user_id":"u1"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "ITEM_NOT_FOUND", envelope.Error.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/shop/items/i1/buy", `{"user_id":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "USER_NOT_FOUND", envelope.Error.Code)
	})

	t.Run("insufficient gift points", func(t *testing.T) {
		resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/shop/items/i1/buy", `{"user_id":"broke"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "INSUFFICIENT_GIFT_POINTS", envelope.Error.Code)
	})
}

func TestAdminItemLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/items",
		`{"name":"A1","gpPrice":500,"itemType":1,"quantity":10}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	require.NotEmpty(t, created.ID)

	resp, envelope = doJSON(t, http.MethodPut, srv.URL+"/api/v1/admin/items/"+created.ID,
		`{"name":"A1 v2","gpPrice":600,"itemType":1,"quantity":5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/v1/shop/items", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Items []model.ShopItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Len(t, data.Items, 1)
	assert.Equal(t, "A1 v2", data.Items[0].Name)
}

func TestAdminClaimSales(t *testing.T) {
	srv, store, collections := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, collections.Stats, repository.StatsDocKey, model.ShopStats{
		TotalUsdSales:     decimal.NewFromInt(100),
		UnclaimedUsdSales: decimal.NewFromInt(25),
	}))

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/shop-stats/claim", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	var data struct {
		Claimed decimal.Decimal `json:"claimed"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.True(t, data.Claimed.Equal(decimal.NewFromInt(25)))

	// a second claim finds nothing left
	_, envelope = doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/shop-stats/claim", "")
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.True(t, data.Claimed.IsZero())
}

func TestStatusEndpointIsPublic(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}
