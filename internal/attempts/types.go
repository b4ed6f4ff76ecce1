// Package attempts はログイン失敗回数の記録とロックアウト判定を提供します。
package attempts

import (
	"context"
	"time"
)

// Policy はロックアウトの閾値です。
type Policy struct {
	MaxAttempts  int           // ロックまでの失敗回数
	Window       time.Duration // 失敗回数を数える期間
	LockDuration time.Duration // ロックの継続時間
}

// DefaultPolicy は 15 分間に 5 回失敗すると 10 分ロックします。
var DefaultPolicy = Policy{
	MaxAttempts:  5,
	Window:       15 * time.Minute,
	LockDuration: 10 * time.Minute,
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultPolicy.Window
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultPolicy.LockDuration
	}
	return p
}

// Limiter はクライアント（IP など）単位でログイン失敗を記録します。
type Limiter interface {
	// CheckLock はロック中であれば残り時間を返します。ロックされていなければ 0 です。
	CheckLock(ctx context.Context, client string) (time.Duration, error)
	// RecordFailure は失敗を 1 回記録し、ロックまでの残り回数を返します。
	RecordFailure(ctx context.Context, client string) (int, error)
	// Reset は記録を消去します。
	Reset(ctx context.Context, client string) error
}
