package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"susu_keeper/internal/domain/group"
	"susu_keeper/internal/domain/payout"
)

// Client is an RPC connection that binds group contracts on demand.
type Client struct {
	eth    *ethclient.Client
	signer *bind.TransactOpts
	logger *logrus.Entry
}

// Dial connects to rpcURL. With a private key the bound contracts can also send writes.
// chainID 0 means ask the node.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64, logger *logrus.Entry) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	c := &Client{eth: eth, logger: logger}

	if privateKeyHex == "" {
		logger.Info("No signer key configured, group contracts are read-only")
		return c, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	id := big.NewInt(chainID)
	if chainID == 0 {
		id, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("failed to query chain id: %w", err)
		}
	}
	c.signer, err = bind.NewKeyedTransactorWithChainID(key, id)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"signer":   c.signer.From.Hex(),
		"chain_id": id.String(),
	}).Info("Signer configured for group contract writes")
	return c, nil
}

func (c *Client) bind(address common.Address) *GroupContract {
	return NewGroupContract(address, c.eth, c.eth, c.eth, c.signer)
}

// Reader implements payout.ReaderFactory.
func (c *Client) Reader(address common.Address) (payout.ChainReader, error) {
	return c.bind(address), nil
}

// Contract implements group.ContractFactory.
func (c *Client) Contract(address common.Address) (group.Contract, error) {
	return c.bind(address), nil
}

func (c *Client) Close() {
	c.eth.Close()
}
