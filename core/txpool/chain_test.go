package txpool

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// fakeState is an in-memory StateReader used by tests in place of a real
// state trie.
type fakeState struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
}

func newFakeState() *fakeState {
	return &fakeState{
		balances: make(map[common.Address]*uint256.Int),
		nonces:   make(map[common.Address]uint64),
	}
}

func (s *fakeState) GetBalance(addr common.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (s *fakeState) GetNonce(addr common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[addr]
}

func (s *fakeState) SetBalance(addr common.Address, balance *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = balance
}

func (s *fakeState) SetNonce(addr common.Address, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[addr] = nonce
}

// fakeChain is a minimal BlockChain used by pool tests.
type fakeChain struct {
	mu sync.Mutex

	config *gethparams.ChainConfig
	head   *types.Header
	states map[common.Hash]*fakeState
	blocks map[uint64]*types.Block

	headFeed event.Feed
}

func newFakeChain(config *gethparams.ChainConfig) *fakeChain {
	genesis := &types.Header{
		Number:   big.NewInt(0),
		GasLimit: 8_000_000,
		Root:     types.EmptyRootHash,
	}
	c := &fakeChain{
		config: config,
		head:   genesis,
		states: map[common.Hash]*fakeState{genesis.Root: newFakeState()},
		blocks: make(map[uint64]*types.Block),
	}
	c.blocks[0] = types.NewBlockWithHeader(genesis)
	return c
}

func (c *fakeChain) Config() *gethparams.ChainConfig { return c.config }

func (c *fakeChain) CurrentBlock() *types.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

func (c *fakeChain) GetBlock(hash common.Hash, number uint64) *types.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[number]
}

func (c *fakeChain) StateAt(root common.Hash) (StateReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[root]
	if !ok {
		st = newFakeState()
		c.states[root] = st
	}
	return st, nil
}

func (c *fakeChain) SubscribeChainHeadEvent(ch chan<- ChainHeadEvent) event.Subscription {
	return c.headFeed.Subscribe(ch)
}

// stateOf returns the mutable fakeState backing root, creating one if
// necessary, so tests can fund accounts before admitting transactions.
func (c *fakeChain) stateOf(root common.Hash) *fakeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[root]
	if !ok {
		st = newFakeState()
		c.states[root] = st
	}
	return st
}

// setHead installs newHead (and its block, if txs is non-nil) as the
// chain's current head, without firing the chain-head feed.
func (c *fakeChain) setHead(newHead *types.Header, txs []*types.Transaction) {
	c.mu.Lock()
	if txs != nil {
		c.blocks[newHead.Number.Uint64()] = types.NewBlockWithHeader(newHead).WithBody(txs, nil)
	}
	c.head = newHead
	c.mu.Unlock()
}

func testChainConfig() *gethparams.ChainConfig {
	return &gethparams.ChainConfig{
		ChainID:     big.NewInt(1337),
		HomesteadBlock: big.NewInt(0),
		EIP150Block: big.NewInt(0),
		EIP155Block: big.NewInt(0),
		EIP158Block: big.NewInt(0),
		ByzantiumBlock: big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock: big.NewInt(0),
		IstanbulBlock: big.NewInt(0),
		BerlinBlock: big.NewInt(0),
		LondonBlock: big.NewInt(0),
	}
}
