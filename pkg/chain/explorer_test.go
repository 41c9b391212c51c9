package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

func TestQueryRouteScanTokenTransfers(t *testing.T) {
	const jewel = "0x30c103f8f5a3a732dfe2dce1cc9446f545527b43"
	const house = "0x1111111111111111111111111111111111111111"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/erc20-transfers") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"items":[
			{"txHash":"0xaaa","from":"0x2222222222222222222222222222222222222222","to":"` + house + `","amount":"25000000000000000000","tokenAddress":"0x30C103F8F5A3A732DFe2dCE1CC9446f545527b43","tokenDecimals":18,"timestamp":"2025-06-01T10:00:00Z","blockNumber":100},
			{"txHash":"0xbbb","from":"0x2222222222222222222222222222222222222222","to":"` + house + `","amount":"5000000","tokenAddress":"0x9999999999999999999999999999999999999999","tokenDecimals":6,"timestamp":"2025-06-01T10:01:00Z","blockNumber":101},
			{"txHash":"0xccc","from":"` + house + `","to":"0x3333333333333333333333333333333333333333","amount":"1000000000000000000","tokenAddress":"` + jewel + `","tokenDecimals":18,"timestamp":"2025-06-01T10:02:00Z","blockNumber":102}
		]}`))
	}))
	defer srv.Close()

	c := &Client{cfg: &config.Config{ExplorerURL: srv.URL}, http: srv.Client()}
	got, err := c.QueryRouteScanTokenTransfers(context.Background(), config.ChainKlaytn, jewel, house)
	if err != nil {
		t.Fatal(err)
	}
	// Other tokens and outbound transfers are filtered out.
	if len(got) != 1 {
		t.Fatalf("got %d transfers, want 1", len(got))
	}
	tr := got[0]
	if tr.TxHash != "0xaaa" || tr.Token != jewel {
		t.Errorf("transfer = %s token %s, token casing must not matter", tr.TxHash, tr.Token)
	}
	if !tr.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("amount = %s, want 25 whole JEWEL", tr.Amount)
	}
	if !tr.Time.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("time = %s, want explorer timestamp", tr.Time)
	}
}
