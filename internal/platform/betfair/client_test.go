package betfair

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(api, login *httptest.Server) *Client {
	return &Client{
		cfg: Config{
			APIEndpoint:   api.URL,
			LoginEndpoint: login.URL,
			AppKey:        "test-app-key",
			Username:      "user",
			Password:      "pass",
		},
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func loginServer(t *testing.T, logins *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*logins++
		assert.Equal(t, "test-app-key", r.Header.Get("X-Application"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user", r.FormValue("username"))
		fmt.Fprintf(w, `{"sessionToken":"token-%d","loginStatus":"SUCCESS"}`, *logins)
	}))
}

func TestLoginStoresToken(t *testing.T) {
	logins := 0
	login := loginServer(t, &logins)
	defer login.Close()

	c := testClient(login, login)
	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, "token-1", c.token())
}

func TestLoginFailureStatus(t *testing.T) {
	login := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"loginStatus":"INVALID_USERNAME_OR_PASSWORD"}`)
	}))
	defer login.Close()

	c := testClient(login, login)
	err := c.Login(context.Background())
	require.ErrorContains(t, err, "INVALID_USERNAME_OR_PASSWORD")
}

func TestRPCRetriesOnceOnInvalidSession(t *testing.T) {
	logins := 0
	login := loginServer(t, &logins)
	defer login.Close()

	calls := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SportsAPING/v1.0/listMarketBook", req.Method)
		if calls == 1 {
			assert.Equal(t, "token-1", r.Header.Get("X-Authentication"))
			fmt.Fprint(w, `{"error":{"code":-32099,"message":"ANGX-0003",
				"data":{"APINGException":{"errorCode":"INVALID_SESSION_INFORMATION"}}}}`)
			return
		}
		assert.Equal(t, "token-2", r.Header.Get("X-Authentication"))
		fmt.Fprint(w, `{"result":[{"marketId":"1.234","totalMatched":5000,"runners":[]}]}`)
	}))
	defer api.Close()

	c := testClient(api, login)
	books, err := c.ListMarketBook(context.Background(), []string{"1.234"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, logins, "initial login plus one re-login")
	require.Len(t, books, 1)
	assert.Equal(t, "1.234", books[0].MarketID)
	assert.Equal(t, 5000.0, books[0].TotalMatched)
}

func TestRPCErrorSurfacesCode(t *testing.T) {
	logins := 0
	login := loginServer(t, &logins)
	defer login.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":-32099,"message":"ANGX-0002",
			"data":{"APINGException":{"errorCode":"INVALID_APP_KEY"}}}}`)
	}))
	defer api.Close()

	c := testClient(api, login)
	_, err := c.ListMarketBook(context.Background(), []string{"1.234"})
	require.ErrorContains(t, err, "INVALID_APP_KEY")
	assert.Equal(t, 1, logins, "no retry for non-session errors")
}

func TestListMarketCatalogueDecodes(t *testing.T) {
	logins := 0
	login := loginServer(t, &logins)
	defer login.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SportsAPING/v1.0/listMarketCatalogue", req.Method)
		fmt.Fprint(w, `{"result":[{
			"marketId":"1.234",
			"marketName":"2m Hcap",
			"marketStartTime":"2026-08-29T14:30:00.000Z",
			"event":{"countryCode":"GB"},
			"runners":[
				{"selectionId":11,"runnerName":"Alpha","metadata":{"CLOTH_NUMBER":"4"}},
				{"selectionId":22,"runnerName":"Bravo","metadata":{}}
			]
		}]}`)
	}))
	defer api.Close()

	c := testClient(api, login)
	cats, err := c.ListMarketCatalogue(context.Background(), MarketFilter{}, 50)
	require.NoError(t, err)

	require.Len(t, cats, 1)
	cat := cats[0]
	assert.Equal(t, "1.234", cat.MarketID)
	assert.Equal(t, "GB", cat.CountryCode)
	assert.Equal(t, time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC), cat.StartTime)
	require.Len(t, cat.Runners, 2)
	assert.Equal(t, 4, cat.Runners[0].ClothNumber)
	assert.Zero(t, cat.Runners[1].ClothNumber)
}

func TestAPINGCodeExtraction(t *testing.T) {
	nested := &rpcError{Data: json.RawMessage(`{"APINGException":{"errorCode":"TOO_MUCH_DATA"}}`)}
	assert.Equal(t, "TOO_MUCH_DATA", nested.APINGCode())

	flat := &rpcError{Data: json.RawMessage(`{"errorCode":"SERVICE_BUSY"}`)}
	assert.Equal(t, "SERVICE_BUSY", flat.APINGCode())

	var nilErr *rpcError
	assert.Empty(t, nilErr.APINGCode())
}
