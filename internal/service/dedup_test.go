package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupLedger_InsertAndContains(t *testing.T) {
	ledger := NewDedupLedger(10)

	assert.True(t, ledger.Insert("fp-1"))
	assert.True(t, ledger.Contains("fp-1"))
	assert.False(t, ledger.Contains("fp-2"))

	// Second insert of the same fingerprint is rejected
	assert.False(t, ledger.Insert("fp-1"))
	assert.Equal(t, 1, ledger.Len())
}

func TestDedupLedger_CapacityEviction(t *testing.T) {
	ledger := NewDedupLedger(3)

	for i := 0; i < 5; i++ {
		assert.True(t, ledger.Insert(fmt.Sprintf("fp-%d", i)))
	}

	assert.Equal(t, 3, ledger.Len())
	assert.False(t, ledger.Contains("fp-0"))
	assert.False(t, ledger.Contains("fp-1"))
	assert.True(t, ledger.Contains("fp-2"))
	assert.True(t, ledger.Contains("fp-4"))

	// An evicted fingerprint can be captured again
	assert.True(t, ledger.Insert("fp-0"))
}

func TestDedupLedger_EntriesOrder(t *testing.T) {
	ledger := NewDedupLedger(10)
	ledger.Insert("a")
	ledger.Insert("b")
	ledger.Insert("c")

	assert.Equal(t, []string{"a", "b", "c"}, ledger.Entries())
}

func TestDedupLedger_Restore(t *testing.T) {
	ledger := NewDedupLedger(2)
	ledger.Insert("old")

	ledger.Restore([]string{"a", "b", "c"})

	// Oversized snapshot keeps the newest entries
	assert.Equal(t, 2, ledger.Len())
	assert.False(t, ledger.Contains("old"))
	assert.False(t, ledger.Contains("a"))
	assert.True(t, ledger.Contains("b"))
	assert.True(t, ledger.Contains("c"))
}

func TestDedupLedger_DefaultCapacity(t *testing.T) {
	ledger := NewDedupLedger(0)
	assert.True(t, ledger.Insert("fp"))
	assert.Equal(t, 1, ledger.Len())
}
