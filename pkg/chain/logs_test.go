package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTransferFilterTopics(t *testing.T) {
	token := common.HexToAddress("0xCCb93dAbD71c8Dad03Fc4CE5559dC3D89F948be4")
	house := "0x1111111111111111111111111111111111111111"
	q := transferFilter(token, house, 100, 200)

	if q.FromBlock.Uint64() != 100 || q.ToBlock.Uint64() != 200 {
		t.Fatalf("block range = %s..%s", q.FromBlock, q.ToBlock)
	}
	if len(q.Addresses) != 1 || q.Addresses[0] != token {
		t.Fatalf("addresses = %v", q.Addresses)
	}
	if len(q.Topics) != 3 {
		t.Fatalf("got %d topic slots, want 3", len(q.Topics))
	}
	if q.Topics[0][0] != transferTopic {
		t.Errorf("event topic = %s", q.Topics[0][0])
	}
	if q.Topics[1] != nil {
		t.Errorf("sender topic should be unconstrained, got %v", q.Topics[1])
	}
	// Recipient topic is the 20-byte address left-padded to 32 bytes.
	want := common.HexToHash("0x0000000000000000000000001111111111111111111111111111111111111111")
	if q.Topics[2][0] != want {
		t.Errorf("recipient topic = %s, want %s", q.Topics[2][0], want)
	}
}

func TestTransferTopicSignature(t *testing.T) {
	want := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	if transferTopic != want {
		t.Fatalf("transferTopic = %s, want %s", transferTopic, want)
	}
}
