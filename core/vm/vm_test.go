package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// memStateDB is a minimal in-memory StateDB used only by this package's
// tests — no persistence, no trie, just enough bookkeeping to drive the
// interpreter through CALL/CREATE/SSTORE paths.
type memStateDB struct {
	balances  map[common.Address]*uint256.Int
	nonces    map[common.Address]uint64
	code      map[common.Address][]byte
	codeHash  map[common.Address]common.Hash
	state     map[common.Address]map[common.Hash]common.Hash
	transient map[common.Address]map[common.Hash]common.Hash
	refund    uint64
	snapshots []memStateSnapshot
	destructed map[common.Address]bool
	accessAddr map[common.Address]bool
	accessSlot map[common.Address]map[common.Hash]bool
	logs      []memLog
}

type memLog struct {
	addr   common.Address
	topics []common.Hash
	data   []byte
}

type memStateSnapshot struct {
	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	state    map[common.Address]map[common.Hash]common.Hash
	refund   uint64
}

func newMemStateDB() *memStateDB {
	return &memStateDB{
		balances:   make(map[common.Address]*uint256.Int),
		nonces:     make(map[common.Address]uint64),
		code:       make(map[common.Address][]byte),
		codeHash:   make(map[common.Address]common.Hash),
		state:      make(map[common.Address]map[common.Hash]common.Hash),
		transient:  make(map[common.Address]map[common.Hash]common.Hash),
		destructed: make(map[common.Address]bool),
		accessAddr: make(map[common.Address]bool),
		accessSlot: make(map[common.Address]map[common.Hash]bool),
	}
}

func (s *memStateDB) CreateAccount(addr common.Address) {
	if _, ok := s.balances[addr]; !ok {
		s.balances[addr] = new(uint256.Int)
	}
}

func (s *memStateDB) SubBalance(addr common.Address, amt *uint256.Int) {
	b := s.GetBalance(addr)
	s.balances[addr] = new(uint256.Int).Sub(b, amt)
}

func (s *memStateDB) AddBalance(addr common.Address, amt *uint256.Int) {
	b := s.GetBalance(addr)
	s.balances[addr] = new(uint256.Int).Add(b, amt)
}

func (s *memStateDB) GetBalance(addr common.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return b
	}
	return new(uint256.Int)
}

func (s *memStateDB) GetNonce(addr common.Address) uint64 { return s.nonces[addr] }
func (s *memStateDB) SetNonce(addr common.Address, n uint64) { s.nonces[addr] = n }

func (s *memStateDB) GetCodeHash(addr common.Address) common.Hash { return s.codeHash[addr] }
func (s *memStateDB) GetCode(addr common.Address) []byte          { return s.code[addr] }
func (s *memStateDB) SetCode(addr common.Address, code []byte) {
	s.code[addr] = code
	s.codeHash[addr] = crypto256(code)
}
func (s *memStateDB) GetCodeSize(addr common.Address) int { return len(s.code[addr]) }

func (s *memStateDB) AddRefund(n uint64) { s.refund += n }
func (s *memStateDB) SubRefund(n uint64) {
	if n > s.refund {
		s.refund = 0
		return
	}
	s.refund -= n
}
func (s *memStateDB) GetRefund() uint64 { return s.refund }

func (s *memStateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return s.GetState(addr, key)
}
func (s *memStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := s.state[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}
func (s *memStateDB) SetState(addr common.Address, key, val common.Hash) {
	if s.state[addr] == nil {
		s.state[addr] = make(map[common.Hash]common.Hash)
	}
	s.state[addr][key] = val
}

func (s *memStateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := s.transient[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}
func (s *memStateDB) SetTransientState(addr common.Address, key, val common.Hash) {
	if s.transient[addr] == nil {
		s.transient[addr] = make(map[common.Hash]common.Hash)
	}
	s.transient[addr][key] = val
}

func (s *memStateDB) SelfDestruct(addr common.Address)       { s.destructed[addr] = true }
func (s *memStateDB) HasSelfDestructed(addr common.Address) bool { return s.destructed[addr] }

func (s *memStateDB) Exist(addr common.Address) bool {
	_, ok := s.balances[addr]
	return ok
}
func (s *memStateDB) Empty(addr common.Address) bool {
	return s.GetBalance(addr).IsZero() && s.GetNonce(addr) == 0 && len(s.GetCode(addr)) == 0
}

func (s *memStateDB) AddressInAccessList(addr common.Address) bool { return s.accessAddr[addr] }
func (s *memStateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOk := s.accessAddr[addr]
	slotOk := false
	if m, ok := s.accessSlot[addr]; ok {
		slotOk = m[slot]
	}
	return addrOk, slotOk
}
func (s *memStateDB) AddAddressToAccessList(addr common.Address) { s.accessAddr[addr] = true }
func (s *memStateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessAddr[addr] = true
	if s.accessSlot[addr] == nil {
		s.accessSlot[addr] = make(map[common.Hash]bool)
	}
	s.accessSlot[addr][slot] = true
}

func (s *memStateDB) Snapshot() int {
	snap := memStateSnapshot{
		balances: make(map[common.Address]*uint256.Int, len(s.balances)),
		nonces:   make(map[common.Address]uint64, len(s.nonces)),
		state:    make(map[common.Address]map[common.Hash]common.Hash, len(s.state)),
		refund:   s.refund,
	}
	for k, v := range s.balances {
		snap.balances[k] = new(uint256.Int).Set(v)
	}
	for k, v := range s.nonces {
		snap.nonces[k] = v
	}
	for addr, m := range s.state {
		cp := make(map[common.Hash]common.Hash, len(m))
		for k, v := range m {
			cp[k] = v
		}
		snap.state[addr] = cp
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1
}

func (s *memStateDB) RevertToSnapshot(id int) {
	snap := s.snapshots[id]
	s.balances = snap.balances
	s.nonces = snap.nonces
	s.state = snap.state
	s.refund = snap.refund
	s.snapshots = s.snapshots[:id]
}

func (s *memStateDB) AddLog(addr common.Address, topics []common.Hash, data []byte, blockNumber uint64) {
	s.logs = append(s.logs, memLog{addr: addr, topics: topics, data: data})
}

func (s *memStateDB) AddPreimage(common.Hash, []byte) {}

func testCanTransfer(db StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func testTransfer(db StateDB, from, to common.Address, amount *uint256.Int) {
	db.SubBalance(from, amount)
	db.AddBalance(to, amount)
}

func newTestEVM(statedb *memStateDB, sched *Schedule) *EVM {
	blockCtx := BlockContext{
		CanTransfer: testCanTransfer,
		Transfer:    testTransfer,
		GetHash:     func(n uint64) common.Hash { return common.Hash{} },
		Coinbase:    common.Address{},
		GasLimit:    30_000_000,
		BlockNumber: big.NewInt(1),
		Time:        1,
		Difficulty:  big.NewInt(0),
		BaseFee:     big.NewInt(1),
	}
	txCtx := TxContext{
		Origin:   common.HexToAddress("0xaaaa"),
		GasPrice: big.NewInt(1),
	}
	return NewEVM(blockCtx, txCtx, statedb, big.NewInt(1337), sched)
}
