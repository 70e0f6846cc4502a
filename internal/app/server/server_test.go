package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/privacy"
	"github.com/sifan077/DealLink/internal/app/repository"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/middleware"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
	"github.com/sifan077/DealLink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const internalSecret = "pipeline-secret"

type fixture struct {
	app    *fiber.App
	tokens *httpUtil.TokenVerifier
	store  repository.Store
	events repository.EventReader
}

func newFixture(t *testing.T, configure ...func(*Dependencies)) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	events := repository.NewEventReader(db)
	gen, err := service.NewCodeGenerator()
	require.NoError(t, err)

	links := service.NewShortLinkService(service.ShortLinkDeps{
		Store:     store,
		Generator: gen,
		Filter:    service.NewCodeFilter(1000, 0.001),
	})
	tokens := httpUtil.NewTokenVerifier([]byte("jwt-secret"), "deallink-auth")

	deps := Dependencies{
		Links:          links,
		Clicks:         service.NewClickRecorder(service.ClickRecorderDeps{Links: links, Store: store}),
		Conversions:    service.NewConversionService(service.ConversionDeps{Store: store}),
		Stats:          service.NewStatsService(links),
		Analytics:      service.NewAnalyticsService(events, nil),
		Onboarding:     service.NewOnboardingService(store),
		Tokens:         tokens,
		InternalSecret: internalSecret,
		BaseURL:        "https://go.deallink.test/",
	}
	for _, fn := range configure {
		fn(&deps)
	}
	srv := New(deps)
	return &fixture{app: srv.App(), tokens: tokens, store: store, events: events}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func (f *fixture) bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := f.tokens.Issue(userID, time.Minute)
	require.NoError(t, err)
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func (f *fixture) createLink(t *testing.T, userID string) map[string]any {
	t.Helper()
	resp, body := f.do(t, fiber.MethodPost, "/internal/links/create", map[string]any{
		"asin":       "B0TEST0001",
		"amazonUrl":  "https://www.amazon.de/dp/B0TEST0001",
		"amazonTag":  "deals-21",
		"userId":     userID,
		"channelRef": "telegram",
		"title":      "Noise cancelling headphones",
		"price":      199.99,
	}, map[string]string{middleware.InternalSecretHeader: internalSecret})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	return body
}

func TestServer_EndToEnd(t *testing.T) {
	f := newFixture(t)

	link := f.createLink(t, "user-1")
	assert.Equal(t, true, link["success"])
	code := link["shortCode"].(string)
	linkID := link["linkId"].(string)
	assert.Len(t, code, 7)
	assert.Equal(t, "https://go.deallink.test/r/"+code, link["shortUrl"])
	assert.Equal(t, "https://www.amazon.de/dp/B0TEST0001?tag=deals-21", link["destinationUrl"])

	for i := 0; i < 3; i++ {
		resp, body := f.do(t, fiber.MethodPost, "/track/r/"+code+"/clickout?ch=telegram", nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://www.amazon.de/dp/B0TEST0001?tag=deals-21", body["redirectUrl"])
		assert.Equal(t, linkID, body["trackingId"])
	}

	resp, body := f.do(t, fiber.MethodPost, "/track/conversion", map[string]any{
		"trackingId": linkID,
		"revenue":    50,
	}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.InDelta(t, 2.5, body["commission"], 1e-9)
	conversionID := body["conversionId"].(string)

	resp, body = f.do(t, fiber.MethodPost, "/track/conversion", map[string]any{
		"trackingId": linkID,
		"revenue":    50,
	}, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, conversionID, body["conversionId"])

	resp, body = f.do(t, fiber.MethodGet, "/track/stats/"+linkID, nil, f.bearer(t, "user-1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["clicks"])
	assert.EqualValues(t, 1, body["conversions"])
	assert.InDelta(t, 50, body["revenue"], 1e-9)
	assert.InDelta(t, 33.33, body["cvr"], 1e-9)
	assert.InDelta(t, 16.67, body["epc"], 1e-9)
	assert.NotEmpty(t, body["createdAt"])
}

func TestServer_NotFound(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodPost, "/track/r/Nope000/clickout", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/track/conversion", map[string]any{"trackingId": "missing", "revenue": 10}, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/track/stats/missing", nil, f.bearer(t, "user-1"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/r/Nope000", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
}

func TestServer_StatsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	linkID := f.createLink(t, "user-1")["linkId"].(string)

	resp, _ := f.do(t, fiber.MethodGet, "/track/stats/"+linkID, nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/track/stats/"+linkID, nil, f.bearer(t, "user-2"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestServer_ConversionValidation(t *testing.T) {
	f := newFixture(t)
	linkID := f.createLink(t, "user-1")["linkId"].(string)

	for name, body := range map[string]map[string]any{
		"zero revenue":        {"trackingId": linkID, "revenue": 0},
		"negative revenue":    {"trackingId": linkID, "revenue": -3},
		"negative commission": {"trackingId": linkID, "revenue": 10, "commission": -1},
		"missing tracking id": {"revenue": 10},
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := f.do(t, fiber.MethodPost, "/track/conversion", body, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_InternalRoutesRequireSecret(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodPost, "/internal/links/create", map[string]any{}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/internal/links/create", map[string]any{"asin": "B0TEST0001"},
		map[string]string{middleware.InternalSecretHeader: internalSecret})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/internal/analytics/funnel", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServer_OnboardingAndFunnel(t *testing.T) {
	f := newFixture(t)
	secret := map[string]string{middleware.InternalSecretHeader: internalSecret}

	resp, body := f.do(t, fiber.MethodPost, "/internal/onboarding/events",
		map[string]any{"userId": "user-1", "eventType": "signup"}, secret)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.NotEmpty(t, body["id"])

	resp, _ = f.do(t, fiber.MethodPost, "/internal/onboarding/events",
		map[string]any{"userId": "user-1", "eventType": "logged_in"}, secret)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, fiber.MethodGet, "/internal/analytics/funnel?from=2026-10-01&to=2026-10-19", nil, secret)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rates := body["rates"].(map[string]any)
	assert.Equal(t, "0%", rates["overall"])

	resp, _ = f.do(t, fiber.MethodGet, "/internal/analytics/funnel?from=yesterday", nil, secret)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestServer_AnalyticsRequiresBearer(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodGet, "/analytics/channels", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodGet, "/analytics/heatmap", nil, f.bearer(t, "user-1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["cells"], 168)
	assert.Nil(t, body["bestTime"])
}

func TestServer_Interstitial(t *testing.T) {
	f := newFixture(t)
	code := f.createLink(t, "user-1")["shortCode"].(string)

	req := httptest.NewRequest(fiber.MethodGet, "/r/"+code+"?ch=whatsapp", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "clickout?ch=whatsapp")

	// rendering the page does not count as a click
	link, err := f.store.Links().GetByCode(context.Background(), code)
	require.NoError(t, err)
	assert.Zero(t, link.Clicks)
}

func (f *fixture) clickout(t *testing.T, code, forwardedFor string) {
	t.Helper()
	resp, _ := f.do(t, fiber.MethodPost, "/track/r/"+code+"/clickout", nil,
		map[string]string{fiber.HeaderXForwardedFor: forwardedFor})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func (f *fixture) clickHashes(t *testing.T, ownerID string) []string {
	t.Helper()
	events, err := f.events.ListClicks(context.Background(), repository.EventFilter{OwnerID: ownerID})
	require.NoError(t, err)
	hashes := make([]string, 0, len(events))
	for _, e := range events {
		hashes = append(hashes, e.IPHash)
	}
	return hashes
}

func TestServer_ClickFingerprintUsesForwardedClient(t *testing.T) {
	// app.Test connects from 0.0.0.0, which plays the load balancer here
	f := newFixture(t, func(d *Dependencies) {
		d.ProxyHeader = fiber.HeaderXForwardedFor
		d.TrustedProxies = []string{"0.0.0.0"}
	})
	code := f.createLink(t, "user-1")["shortCode"].(string)

	f.clickout(t, code, "203.0.113.9")
	f.clickout(t, code, "198.51.100.77, 10.0.0.1")

	hashes := f.clickHashes(t, "user-1")
	assert.ElementsMatch(t, []string{
		privacy.Process("203.0.113.9"),
		privacy.Process("198.51.100.77"),
	}, hashes)
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestServer_ForwardedHeaderIgnoredFromUntrustedPeer(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) {
		d.ProxyHeader = fiber.HeaderXForwardedFor
		d.TrustedProxies = []string{"10.0.0.0/8"}
	})
	code := f.createLink(t, "user-1")["shortCode"].(string)

	f.clickout(t, code, "203.0.113.9")
	f.clickout(t, code, "198.51.100.77")

	peer := privacy.Process("0.0.0.0")
	assert.Equal(t, []string{peer, peer}, f.clickHashes(t, "user-1"))
}

func TestServer_OverlongChannelIsClamped(t *testing.T) {
	f := newFixture(t)
	link := f.createLink(t, "user-1")
	code := link["shortCode"].(string)

	resp, body := f.do(t, fiber.MethodPost, "/track/r/"+code+"/clickout?ch="+strings.Repeat("x", 200), nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, link["destinationUrl"], body["redirectUrl"])

	events, err := f.events.ListClicks(context.Background(), repository.EventFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, strings.Repeat("x", model.ChannelRefMaxLength), events[0].ChannelRef)

	stored, err := f.store.Links().GetByCode(context.Background(), code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.Clicks)
}

func TestServer_AnalyticsSeesOnlyOwnClicks(t *testing.T) {
	f := newFixture(t)
	mine := f.createLink(t, "user-1")["shortCode"].(string)
	theirs := f.createLink(t, "user-2")["shortCode"].(string)

	f.do(t, fiber.MethodPost, "/track/r/"+mine+"/clickout?ch=whatsapp", nil, nil)
	f.do(t, fiber.MethodPost, "/track/r/"+theirs+"/clickout?ch=discord", nil, nil)
	f.do(t, fiber.MethodPost, "/track/r/"+theirs+"/clickout?ch=discord", nil, nil)

	resp, body := f.do(t, fiber.MethodGet, "/analytics/channels", nil, f.bearer(t, "user-1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "whatsapp")
	assert.NotContains(t, string(raw), "discord")
}

func TestServer_HealthDegraded(t *testing.T) {
	srv := New(Dependencies{
		HealthCheck: func(context.Context) error { return errors.New("db down") },
	})

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, fiber.MethodGet, "/health", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}
