package gateway

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"riskpool/core/types"
	"riskpool/native/bank"
	"riskpool/native/cooler"
	"riskpool/native/etoken"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func newTestServer(t *testing.T) (*httptest.Server, *etoken.Ledger, *cooler.Engine) {
	t.Helper()
	operator := testAddr(0x01)
	reserve := testAddr(0xAA)
	etkSelf := testAddr(0xE1)
	queueSelf := testAddr(0xC1)

	asset := bank.NewBookAsset("USDC", testAddr(0xFE), operator, 6)
	require.NoError(t, asset.Mint(operator, reserve, big.NewInt(10_000_000_000)))

	ledger := etoken.New("epool USDC", etkSelf, reserve, asset, etoken.Params{
		LiquidityRequirement:     etoken.WadFromRatio(5, 100),
		InternalLoanInterestRate: etoken.WadFromRatio(10, 100),
	})
	queue := cooler.NewEngine(queueSelf)
	queue.RegisterEToken(etkSelf, ledger)
	queue.SetCooldownPeriod(etkSelf, 86_400)
	ledger.SetCooler(queue, queueSelf)

	srv := httptest.NewServer(NewServer(ledger, queue, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, ledger, queue
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestPoolStatusEndpoint(t *testing.T) {
	srv, ledger, _ := newTestServer(t)
	lp := testAddr(0x02)
	_, err := ledger.Deposit(testAddr(0xAA), lp, big.NewInt(1_000_000_000))
	require.NoError(t, err)

	var status poolStatusResponse
	code := getJSON(t, srv.URL+"/v1/pool/", &status)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "epool USDC", status.Name)
	require.Equal(t, "1000000000", status.TotalSupply)
	require.Equal(t, "1000000000000000000", status.Scale)
	require.Equal(t, "1000000000", status.FundsAvailable)
}

func TestBalanceEndpoint(t *testing.T) {
	srv, ledger, _ := newTestServer(t)
	lp := testAddr(0x02)
	_, err := ledger.Deposit(testAddr(0xAA), lp, big.NewInt(500_000_000))
	require.NoError(t, err)

	var bal balanceResponse
	code := getJSON(t, srv.URL+"/v1/pool/balance/0x"+lp.Hex(), &bal)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "500000000", bal.Balance)

	code = getJSON(t, srv.URL+"/v1/pool/balance/nonsense", &bal)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRequestEndpoint(t *testing.T) {
	srv, ledger, queue := newTestServer(t)
	lp := testAddr(0x02)
	_, err := ledger.Deposit(testAddr(0xAA), lp, big.NewInt(500_000_000))
	require.NoError(t, err)
	ledger.Approve(lp, queue.Address(), etoken.MaxAmount)
	id, err := queue.ScheduleWithdrawal(lp, ledger.Address(), 0, big.NewInt(200_000_000))
	require.NoError(t, err)

	var req requestResponse
	code := getJSON(t, srv.URL+"/v1/requests/"+"1", &req)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, id, req.ID)
	require.Equal(t, "200000000", req.AmountAtSchedule)
	require.Equal(t, "200000000", req.CurrentValue)
	require.False(t, req.Executed)

	code = getJSON(t, srv.URL+"/v1/requests/99", &req)
	require.Equal(t, http.StatusNotFound, code)

	var pending pendingResponse
	code = getJSON(t, srv.URL+"/v1/requests/pending", &pending)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "200000000", pending.Pending)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
