package chainrpc

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pixelforge/pixelforge-api/internal/config"
)

// transferTopic is the keccak hash of the ERC-20 Transfer event signature.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// TransferLog is one decoded ERC-20 transfer to the treasury recipient.
type TransferLog struct {
	TxHash      string
	From        string
	Amount      float64 // token units, decimals applied
	RawAmount   *big.Int
	BlockNumber uint64
}

// Client wraps one chain's RPC endpoint for transfer-log scanning.
type Client struct {
	name      string
	eth       *ethclient.Client
	token     common.Address
	recipient common.Address
	decimals  int
}

func Dial(cfg config.ChainConfig) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Name, err)
	}

	return &Client{
		name:      cfg.Name,
		eth:       eth,
		token:     common.HexToAddress(cfg.TokenAddress),
		recipient: common.HexToAddress(cfg.Recipient),
		decimals:  cfg.TokenDecimals,
	}, nil
}

func (c *Client) Name() string { return c.name }

// RecentTransferLogs fetches token transfers to the recipient within the
// last blockDepth blocks. The range is bounded to stay rate-limit friendly.
func (c *Client) RecentTransferLogs(ctx context.Context, blockDepth uint64) ([]TransferLog, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s head block: %w", c.name, err)
	}

	from := uint64(0)
	if head > blockDepth {
		from = head - blockDepth
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.token},
		Topics: [][]common.Hash{
			{transferTopic},
			nil, // any sender
			{common.BytesToHash(c.recipient.Bytes())},
		},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s filter logs: %w", c.name, err)
	}

	out := make([]TransferLog, 0, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) != 3 {
			continue
		}
		raw := new(big.Int).SetBytes(l.Data)
		out = append(out, TransferLog{
			TxHash:      l.TxHash.Hex(),
			From:        common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
			Amount:      c.toTokenUnits(raw),
			RawAmount:   raw,
			BlockNumber: l.BlockNumber,
		})
	}
	return out, nil
}

func (c *Client) toTokenUnits(raw *big.Int) float64 {
	f, _ := new(big.Float).SetInt(raw).Float64()
	return f / math.Pow10(c.decimals)
}

func (c *Client) Close() {
	c.eth.Close()
}
