package queue

import (
	"errors"
	"math/big"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain verifies that none of this package's tests leave a verifier
// worker goroutine running past Close/Flush returning.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testItem is a minimal Unverified implementation; tests register one per
// raw-byte key so Parse can hand it back without any real encoding.
type testItem struct {
	hash, parent, raw common.Hash
	diff              *big.Int
}

func (t testItem) Hash() common.Hash       { return t.hash }
func (t testItem) RawHash() common.Hash    { return t.raw }
func (t testItem) ParentHash() common.Hash { return t.parent }
func (t testItem) Difficulty() *big.Int    { return t.diff }

type testVerified struct{ hash, parent common.Hash }

func (v testVerified) Hash() common.Hash       { return v.hash }
func (v testVerified) ParentHash() common.Hash { return v.parent }

// testVerifier is a Verifier whose Parse is a lookup table and whose Verify
// fails for any hash in its fail set; everything else succeeds immediately.
type testVerifier struct {
	mu   sync.Mutex
	byRaw map[common.Hash]testItem
	fail  map[common.Hash]bool
}

func newTestVerifier() *testVerifier {
	return &testVerifier{byRaw: make(map[common.Hash]testItem), fail: make(map[common.Hash]bool)}
}

// register makes an item importable via its raw key (used as the Import
// input, wrapped to a fixed 32 bytes for simplicity).
func (v *testVerifier) register(item testItem) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byRaw[item.raw] = item
	return item.raw[:]
}

func (v *testVerifier) failVerify(hash common.Hash) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fail[hash] = true
}

func (v *testVerifier) Parse(raw []byte) (Unverified, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	item, ok := v.byRaw[common.BytesToHash(raw)]
	if !ok {
		return nil, errors.New("unregistered test item")
	}
	return item, nil
}

func (v *testVerifier) Verify(item Unverified, checkSeal bool) (Verified, error) {
	ti := item.(testItem)
	v.mu.Lock()
	fail := v.fail[ti.hash]
	v.mu.Unlock()
	if fail {
		return nil, errors.New("verification failed")
	}
	return testVerified{hash: ti.hash, parent: ti.parent}, nil
}

func hashOf(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	return h
}

func newItem(hash, parent byte, diff int64) testItem {
	return testItem{hash: hashOf(hash), parent: hashOf(parent), raw: hashOf(hash), diff: big.NewInt(diff)}
}

func singleWorkerConfig() Config {
	cfg := DefaultConfig()
	cfg.Verifier.NumVerifiers = 1
	cfg.Verifier.ScaleVerifiers = false
	return cfg
}

func TestImportDrainRoundTrip(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	item := newItem(1, 0, 100)
	raw := v.register(item)

	hash, err := q.Import(raw)
	require.NoError(t, err)
	assert.Equal(t, item.hash, hash)

	q.Flush()
	out := q.Drain(10)
	require.Len(t, out, 1)
	assert.Equal(t, item.hash, out[0].Hash())
}

func TestImportDuplicateRejected(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	item := newItem(1, 0, 10)
	raw := v.register(item)

	_, err := q.Import(raw)
	require.NoError(t, err)

	_, err = q.Import(raw)
	assert.Equal(t, ErrAlreadyQueued, err)
}

func TestImportKnownBadRejected(t *testing.T) {
	item := newItem(1, 0, 10)
	v := newTestVerifier()
	raw := v.register(item)

	cfg := singleWorkerConfig()
	cfg.Verifier.BadHashes = []common.Hash{item.hash}
	q := New(cfg, v, true)
	defer q.Close()

	_, err := q.Import(raw)
	assert.Equal(t, ErrKnownBad, err)
}

func TestImportChildOfBadIsRejectedAndMarkedBad(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	bad := hashOf(9)
	q.MarkAsBad([]common.Hash{bad})

	child := testItem{hash: hashOf(2), parent: bad, raw: hashOf(2), diff: big.NewInt(5)}
	raw := v.register(child)

	_, err := q.Import(raw)
	assert.Equal(t, ErrKnownBad, err)
	assert.True(t, q.bad.Contains(child.hash))
}

func TestOrderPreservedAcrossFailures(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	first := newItem(1, 0, 1)
	middle := newItem(2, 1, 1)
	last := newItem(3, 1, 1) // parent is "first", independent of middle's failure
	v.register(first)
	v.register(middle)
	v.register(last)
	v.failVerify(middle.hash)

	_, err := q.Import(first.raw[:])
	require.NoError(t, err)
	_, err = q.Import(middle.raw[:])
	require.NoError(t, err)
	_, err = q.Import(last.raw[:])
	require.NoError(t, err)

	q.Flush()
	out := q.Drain(10)
	require.Len(t, out, 2)
	assert.Equal(t, first.hash, out[0].Hash())
	assert.Equal(t, last.hash, out[1].Hash())
	assert.True(t, q.bad.Contains(middle.hash))
}

// TestDescendantOfInFlightFailureNeverReachesVerified confirms that even a
// block whose own verification succeeds is dropped (and marked bad) if its
// parent failed verification earlier in the same batch — the drain step
// checks the bad set at hand-off time, not just at MarkAsBad time.
func TestDescendantOfInFlightFailureNeverReachesVerified(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	bad := newItem(1, 0, 1)
	descendant := newItem(2, 1, 1) // parent is the doomed block
	v.register(bad)
	v.register(descendant)
	v.failVerify(bad.hash)

	_, err := q.Import(bad.raw[:])
	require.NoError(t, err)
	_, err = q.Import(descendant.raw[:])
	require.NoError(t, err)

	q.Flush()
	out := q.Drain(10)
	assert.Empty(t, out)
	assert.True(t, q.bad.Contains(bad.hash))
	assert.True(t, q.bad.Contains(descendant.hash))
}

func TestMarkAsBadCascadesToVerifiedDescendants(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	root := newItem(1, 0, 1)
	child := newItem(2, 1, 1)
	v.register(root)
	v.register(child)

	_, err := q.Import(root.raw[:])
	require.NoError(t, err)
	_, err = q.Import(child.raw[:])
	require.NoError(t, err)
	q.Flush()

	// Both verified now; mark the root bad before draining.
	q.MarkAsBad([]common.Hash{root.hash})

	out := q.Drain(10)
	assert.Empty(t, out)
	assert.True(t, q.bad.Contains(child.hash))
}

func TestMarkAsGoodEmptiesProcessing(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	item := newItem(1, 0, 10)
	v.register(item)
	hash, err := q.Import(item.raw[:])
	require.NoError(t, err)

	empty := q.MarkAsGood([]common.Hash{hash})
	assert.True(t, empty)
	assert.Equal(t, big.NewInt(0).String(), q.TotalDifficulty().String())
}

type fakeAncestry struct {
	ancestorOf map[common.Hash]common.Hash // descendant -> accepted ancestor
}

func (f fakeAncestry) IsAncestor(ancestor, descendant common.Hash) bool {
	return f.ancestorOf[descendant] == ancestor
}

func TestIsProcessingForkDetectsNonAncestor(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	// The item stays in the processing set until MarkAsGood or MarkAsBad
	// retires it, whether or not its verification has finished, so
	// IsProcessingFork sees it right after Import.
	orphan := newItem(5, 4, 1)
	v.register(orphan)
	_, err := q.Import(orphan.raw[:])
	require.NoError(t, err)

	best := hashOf(0xaa)
	chain := fakeAncestry{ancestorOf: map[common.Hash]common.Hash{}}
	assert.True(t, q.IsProcessingFork(best, chain))

	chain.ancestorOf[orphan.parent] = best
	assert.False(t, q.IsProcessingFork(best, chain))
}

func TestIsProcessingForkIgnoresEmptyOrOversizedQueue(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	best := hashOf(0xaa)
	chain := fakeAncestry{ancestorOf: map[common.Hash]common.Hash{}}
	assert.False(t, q.IsProcessingFork(best, chain))

	for i := byte(0); i < maxQueueWithFork+1; i++ {
		item := newItem(10+i, 9, 1)
		v.register(item)
		_, err := q.Import(item.raw[:])
		require.NoError(t, err)
	}
	assert.False(t, q.IsProcessingFork(best, chain))
}

func TestInfoIsFullAndIsEmpty(t *testing.T) {
	full := Info{UnverifiedLen: 5, MaxQueueSize: 5, MaxMemUse: 1000}
	assert.True(t, full.IsFull())

	notFull := Info{UnverifiedLen: 1, MaxQueueSize: 5, MaxMemUse: 1000}
	assert.False(t, notFull.IsFull())

	empty := Info{}
	assert.True(t, empty.IsEmpty())
	assert.False(t, full.IsEmpty())
}

func TestScaleToClampsToSpawnedGoroutinesAndNeverBelowOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verifier.ScaleVerifiers = true
	cfg.Verifier.NumVerifiers = 1
	v := newTestVerifier()
	q := New(cfg, v, true)
	defer q.Close()

	q.scaleTo(1_000_000)
	assert.Equal(t, runtime.NumCPU(), q.NumVerifiers())

	q.scaleTo(0)
	assert.Equal(t, 1, q.NumVerifiers())
}

func TestCloseStopsWorkersPromptly(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)

	done := make(chan struct{})
	go func() {
		q.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestFlushWaitsForInFlightVerification(t *testing.T) {
	v := newTestVerifier()
	q := New(singleWorkerConfig(), v, true)
	defer q.Close()

	for i := byte(0); i < 5; i++ {
		item := newItem(20+i, 19+i, 1)
		v.register(item)
		_, err := q.Import(item.raw[:])
		require.NoError(t, err)
	}
	q.Flush()
	info := q.Info()
	assert.Equal(t, 0, info.UnverifiedLen)
	assert.Equal(t, 0, info.VerifyingLen)
}
