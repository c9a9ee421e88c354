package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitmarket/engine"
)

func TestLedger_ReserveAndUnreserve(t *testing.T) {
	l := New()
	l.Deposit("alice", 100)

	assert.ErrorIs(t, l.Reserve("alice", 101), ErrInsufficientBalance)

	require.NoError(t, l.Reserve("alice", 60))
	assert.Equal(t, engine.Balance(40), l.FreeBalance("alice"))
	assert.Equal(t, engine.Balance(60), l.ReservedBalance("alice"))

	// 釋放量受保留額上限約束
	assert.Equal(t, engine.Balance(60), l.Unreserve("alice", 100))
	assert.Equal(t, engine.Balance(100), l.FreeBalance("alice"))
	assert.Equal(t, engine.Balance(0), l.ReservedBalance("alice"))

	assert.Equal(t, engine.Balance(0), l.Unreserve("nobody", 10))
}

func TestLedger_Transfer(t *testing.T) {
	l := New()
	l.Deposit("alice", 100)

	assert.ErrorIs(t, l.Transfer("alice", "bob", 101), ErrInsufficientBalance)
	require.NoError(t, l.Transfer("alice", "bob", 30))
	assert.Equal(t, engine.Balance(70), l.FreeBalance("alice"))
	assert.Equal(t, engine.Balance(30), l.FreeBalance("bob"))
}

func TestLedger_TransferExistentialMinimum(t *testing.T) {
	l := New(WithExistentialMinimum(50))
	l.Deposit("alice", 100)

	err := l.Transfer("alice", "bob", 10)
	assert.ErrorIs(t, err, ErrUnknownPayee)
	assert.Equal(t, engine.Balance(100), l.FreeBalance("alice"))

	require.NoError(t, l.Transfer("alice", "bob", 50))
	assert.Equal(t, engine.Balance(50), l.FreeBalance("bob"))

	// 已達下限的帳戶可收任意小額
	require.NoError(t, l.Transfer("alice", "bob", 1))
}

func TestLedger_SettleReserved(t *testing.T) {
	t.Run("distributes the reserved amount", func(t *testing.T) {
		l := New()
		l.Deposit("bob", 1000)
		require.NoError(t, l.Reserve("bob", 1000))

		require.NoError(t, l.SettleReserved("bob", []engine.Payout{
			{To: "alice", Amount: 790},
			{To: "creator", Amount: 200},
			{To: "treasury", Amount: 10},
		}))
		assert.Equal(t, engine.Balance(0), l.ReservedBalance("bob"))
		assert.Equal(t, engine.Balance(790), l.FreeBalance("alice"))
		assert.Equal(t, engine.Balance(200), l.FreeBalance("creator"))
		assert.Equal(t, engine.Balance(10), l.FreeBalance("treasury"))
	})

	t.Run("insufficient reserved balance", func(t *testing.T) {
		l := New()
		l.Deposit("bob", 100)
		require.NoError(t, l.Reserve("bob", 100))

		err := l.SettleReserved("bob", []engine.Payout{{To: "alice", Amount: 101}})
		assert.ErrorIs(t, err, ErrInsufficientReserved)
		assert.Equal(t, engine.Balance(100), l.ReservedBalance("bob"))
	})

	t.Run("all or nothing on a bad payee", func(t *testing.T) {
		l := New()
		l.Deposit("bob", 100)
		require.NoError(t, l.Reserve("bob", 100))

		err := l.SettleReserved("bob", []engine.Payout{
			{To: "alice", Amount: 50},
			{To: "", Amount: 50},
		})
		assert.ErrorIs(t, err, ErrUnknownPayee)
		assert.Equal(t, engine.Balance(100), l.ReservedBalance("bob"))
		assert.Equal(t, engine.Balance(0), l.FreeBalance("alice"))
	})

	t.Run("all or nothing below the existential minimum", func(t *testing.T) {
		l := New(WithExistentialMinimum(100))
		l.Deposit("bob", 1000)
		require.NoError(t, l.Reserve("bob", 1000))

		err := l.SettleReserved("bob", []engine.Payout{
			{To: "alice", Amount: 990},
			{To: "treasury", Amount: 10},
		})
		assert.ErrorIs(t, err, ErrUnknownPayee)
		assert.Equal(t, engine.Balance(1000), l.ReservedBalance("bob"))
		assert.Equal(t, engine.Balance(0), l.FreeBalance("alice"))
	})
}
