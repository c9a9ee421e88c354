// Package ledger 提供引擎消費的貨幣託管能力的參考實作。
// 它是外部多幣種帳本的薄門面：所有同帳戶的餘額異動在此序列化，
// 引擎以此為鎖邊界。
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"bitmarket/engine"
)

var (
	ErrInsufficientBalance  = errors.New("insufficient free balance")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
	ErrUnknownPayee         = errors.New("unknown payee account")
)

// account 紀錄單一帳戶的可動用與保留餘額
type account struct {
	free     engine.Balance
	reserved engine.Balance
}

// Ledger 是記憶體內的託管帳本，實作 engine.CurrencyEscrow。
// 同一帳戶的所有異動透過單一互斥鎖序列化。
type Ledger struct {
	mu       sync.Mutex
	accounts map[engine.AccountID]*account

	// existentialMinimum 模擬入帳帳戶的存在性下限：
	// 設為非零時，轉入後總餘額低於此值的轉帳會被拒絕。
	existentialMinimum engine.Balance
}

type Option func(*Ledger)

// WithExistentialMinimum 設置入帳帳戶的存在性下限
func WithExistentialMinimum(min engine.Balance) Option {
	return func(l *Ledger) {
		l.existentialMinimum = min
	}
}

// New 建立一個空的託管帳本
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[engine.AccountID]*account),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Deposit 直接鑄入可動用餘額，供初始化與測試使用
func (l *Ledger) Deposit(who engine.AccountID, amount engine.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acct(who).free += amount
}

func (l *Ledger) acct(who engine.AccountID) *account {
	a, ok := l.accounts[who]
	if !ok {
		a = &account{}
		l.accounts[who] = a
	}
	return a
}

// FreeBalance 回傳帳戶可動用的餘額
func (l *Ledger) FreeBalance(who engine.AccountID) engine.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[who]; ok {
		return a.free
	}
	return 0
}

// ReservedBalance 回傳帳戶被保留的餘額
func (l *Ledger) ReservedBalance(who engine.AccountID) engine.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[who]; ok {
		return a.reserved
	}
	return 0
}

// Reserve 自可動用餘額保留指定金額
func (l *Ledger) Reserve(who engine.AccountID, amount engine.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acct(who)
	if a.free < amount {
		return ErrInsufficientBalance
	}
	a.free -= amount
	a.reserved += amount
	return nil
}

// Unreserve 釋放保留的金額，回傳實際釋放的數量
func (l *Ledger) Unreserve(who engine.AccountID, amount engine.Balance) engine.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acct(who)
	released := amount
	if a.reserved < released {
		released = a.reserved
	}
	a.reserved -= released
	a.free += released
	return released
}

// Transfer 在兩帳戶的可動用餘額間轉帳
func (l *Ledger) Transfer(from, to engine.AccountID, amount engine.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.acct(from)
	if src.free < amount {
		return ErrInsufficientBalance
	}
	dst := l.acct(to)
	if l.existentialMinimum > 0 && dst.free+dst.reserved+amount < l.existentialMinimum {
		return fmt.Errorf("transfer to %s below existential minimum: %w", to, ErrUnknownPayee)
	}
	src.free -= amount
	dst.free += amount
	return nil
}

// SettleReserved 將保留金額一次性分撥給多個收款人。
// 全有或全無：先驗證所有撥款都可完成，才開始移動任何資金。
func (l *Ledger) SettleReserved(from engine.AccountID, payouts []engine.Payout) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.acct(from)
	var total engine.Balance
	for _, p := range payouts {
		if p.To == "" {
			return ErrUnknownPayee
		}
		total += p.Amount
	}
	if src.reserved < total {
		return ErrInsufficientReserved
	}
	if l.existentialMinimum > 0 {
		for _, p := range payouts {
			dst := l.acct(p.To)
			if dst.free+dst.reserved+p.Amount < l.existentialMinimum {
				return fmt.Errorf("payout to %s below existential minimum: %w", p.To, ErrUnknownPayee)
			}
		}
	}

	src.reserved -= total
	for _, p := range payouts {
		l.acct(p.To).free += p.Amount
	}
	return nil
}
