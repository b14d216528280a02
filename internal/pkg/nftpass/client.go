package nftpass

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Oracle answers whether a wallet holds the premium pass. Consumers only see
// the boolean; ownership indexing happens elsewhere.
type Oracle interface {
	HasPass(ctx context.Context, wallet string) (bool, error)
}

var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// Client reads the pass ERC-721 contract directly.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
}

func Dial(rpcURL, contract string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial pass rpc: %w", err)
	}
	return &Client{
		eth:      eth,
		contract: common.HexToAddress(contract),
	}, nil
}

// HasPass returns true when the wallet's pass balance is non-zero.
func (c *Client) HasPass(ctx context.Context, wallet string) (bool, error) {
	if !common.IsHexAddress(wallet) {
		return false, nil
	}

	addr := common.HexToAddress(wallet)
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(addr.Bytes(), 32)...)

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("balanceOf call: %w", err)
	}

	return new(big.Int).SetBytes(out).Sign() > 0, nil
}

func (c *Client) Close() {
	c.eth.Close()
}
