package engine

import "math/bits"

// Ratio 以百萬分率 (parts-per-million) 表示比例，
// RatioOne 即 100%。所有比例運算皆為飽和運算，不會 panic。
type Ratio uint32

const RatioOne Ratio = 1_000_000

// RatioFromPercent 將百分比轉成 Ratio
func RatioFromPercent(percent uint32) Ratio {
	if percent > 100 {
		return RatioOne
	}
	return Ratio(percent) * (RatioOne / 100)
}

// Mul 計算 amount * r / RatioOne。
// 乘法先以 128 位元中間值計算再做除法，避免在最終飽和前溢位。
func (r Ratio) Mul(amount Balance) Balance {
	hi, lo := bits.Mul64(uint64(amount), uint64(r))
	if hi >= uint64(RatioOne) {
		// 商超過 64 位元，飽和到最大值
		return Balance(^uint64(0))
	}
	q, _ := bits.Div64(hi, lo, uint64(RatioOne))
	return Balance(q)
}

// FeeSplit 是一次成交金額的三段拆分結果。
// 三段加總必定剛好等於成交金額，整數除法的餘數全數歸入 Net。
type FeeSplit struct {
	Net        Balance // 歸賣家
	Royalty    Balance // 歸版稅受益人
	NetworkFee Balance // 歸網路金庫（僅全域刊登）
}

// SplitFees 依版稅率與刊登範圍拆分成交金額。
// 網路費只對全域刊登收取；本地刊登將網路費以外的全額路由給賣家。
// 當版稅與網路費合計超過成交金額時，Net 飽和為零並依序縮減網路費。
func SplitFees(amount Balance, royaltyRate Ratio, networkFeeScale Ratio, level ListingLevel) FeeSplit {
	royalty := royaltyRate.Mul(amount)
	if royalty > amount {
		royalty = amount
	}

	var networkFee Balance
	if level.Kind == ListingGlobal {
		networkFee = networkFeeScale.Mul(amount)
		if networkFee > amount-royalty {
			networkFee = amount - royalty
		}
	}

	return FeeSplit{
		Net:        amount - royalty - networkFee,
		Royalty:    royalty,
		NetworkFee: networkFee,
	}
}

// Total 回傳三段的加總，恆等於拆分時的成交金額
func (s FeeSplit) Total() Balance {
	return s.Net + s.Royalty + s.NetworkFee
}
