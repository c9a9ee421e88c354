// Package assets 提供引擎消費的物品所有權能力的參考實作。
// 它是外部資產託管系統（NFT、土地、插槽）的薄門面，
// 只負責所有權查詢、上架期間的鎖定與所有權移轉。
package assets

import (
	"errors"
	"sync"

	"bitmarket/engine"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrAlreadyLocked = errors.New("item already locked")
	ErrNotOwner      = errors.New("account is not the item owner")
	ErrItemLocked    = errors.New("item is locked")
)

// Registry 是記憶體內的物品所有權登記簿，實作 engine.ItemRegistry。
// Bundle 物品的所有權與鎖定會遞迴作用在所有子物品上。
type Registry struct {
	mu     sync.Mutex
	owners map[string]engine.AccountID
	locked map[string]struct{}
}

// New 建立一個空的所有權登記簿
func New() *Registry {
	return &Registry{
		owners: make(map[string]engine.AccountID),
		locked: make(map[string]struct{}),
	}
}

// Mint 登記物品的初始擁有者，供初始化與測試使用
func (r *Registry) Mint(owner engine.AccountID, item engine.ItemRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range leafKeys(item) {
		r.owners[key] = owner
	}
}

// leafKeys 回傳物品實際持有的認領鍵；Bundle 展開為所有子物品
func leafKeys(item engine.ItemRef) []string {
	if item.Kind != engine.ItemBundle {
		return []string{item.Key()}
	}
	var keys []string
	for _, sub := range item.Bundle {
		keys = append(keys, leafKeys(sub)...)
	}
	return keys
}

// OwnerOf 回傳物品目前的擁有者。
// Bundle 只有在所有子物品同屬一人時才有擁有者。
func (r *Registry) OwnerOf(item engine.ItemRef) (engine.AccountID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerLocked(item)
}

func (r *Registry) ownerLocked(item engine.ItemRef) (engine.AccountID, error) {
	keys := leafKeys(item)
	if len(keys) == 0 {
		return "", ErrItemNotFound
	}
	owner, ok := r.owners[keys[0]]
	if !ok {
		return "", ErrItemNotFound
	}
	for _, key := range keys[1:] {
		other, ok := r.owners[key]
		if !ok {
			return "", ErrItemNotFound
		}
		if other != owner {
			return "", ErrNotOwner
		}
	}
	return owner, nil
}

// LockItem 鎖定物品，任一子物品已被鎖定時整個操作失敗
func (r *Registry) LockItem(item engine.ItemRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := leafKeys(item)
	for _, key := range keys {
		if _, ok := r.locked[key]; ok {
			return ErrAlreadyLocked
		}
	}
	for _, key := range keys {
		r.locked[key] = struct{}{}
	}
	return nil
}

// UnlockItem 解除物品鎖定
func (r *Registry) UnlockItem(item engine.ItemRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range leafKeys(item) {
		delete(r.locked, key)
	}
}

// IsLocked 檢查物品是否被鎖定
func (r *Registry) IsLocked(item engine.ItemRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range leafKeys(item) {
		if _, ok := r.locked[key]; ok {
			return true
		}
	}
	return false
}

// TransferItem 將物品所有權自 from 移轉給 to。
// 鎖定中的物品不可移轉；引擎會在結算時先解鎖再移轉。
func (r *Registry) TransferItem(from, to engine.AccountID, item engine.ItemRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, err := r.ownerLocked(item)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}
	keys := leafKeys(item)
	for _, key := range keys {
		if _, ok := r.locked[key]; ok {
			return ErrItemLocked
		}
	}
	for _, key := range keys {
		r.owners[key] = to
	}
	return nil
}
