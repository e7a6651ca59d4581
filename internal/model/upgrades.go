package model

import "time"

// UpgradeKind names a purchasable upgrade
type UpgradeKind string

const (
	UpgradeClick      UpgradeKind = "click"
	UpgradeFactory    UpgradeKind = "factory"
	UpgradeMultiplier UpgradeKind = "multiplier"
)

// UpgradeKinds lists every purchasable upgrade in display order
var UpgradeKinds = []UpgradeKind{UpgradeClick, UpgradeFactory, UpgradeMultiplier}

// ParseUpgradeKind converts a string to an UpgradeKind
func ParseUpgradeKind(s string) (UpgradeKind, error) {
	for _, k := range UpgradeKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownUpgrade
}

// ClickSource says what produced a banana-click event
type ClickSource string

const (
	SourceClick   ClickSource = "click"
	SourceFactory ClickSource = "factory"
)

// Upgrades holds the persisted upgrade levels of an account
type Upgrades struct {
	ClickLevel      int
	FactoryLevel    int
	MultiplierLevel int
	// MultiplierUntil is when the most recently purchased boost expires
	MultiplierUntil time.Time
}

// DefaultUpgrades returns the levels a new account starts with
func DefaultUpgrades() Upgrades {
	return Upgrades{
		ClickLevel:      1,
		FactoryLevel:    0,
		MultiplierLevel: 1,
	}
}

// MultiplierActive reports whether the multiplier boost applies at now
func (u Upgrades) MultiplierActive(now time.Time) bool {
	return now.Before(u.MultiplierUntil)
}

// Yield is the authoritative number of bananas one event from source earns.
func (u Upgrades) Yield(source ClickSource, now time.Time) int64 {
	var base int64
	switch source {
	case SourceFactory:
		base = int64(u.FactoryLevel)
	default:
		base = int64(u.ClickLevel)
	}
	if u.MultiplierActive(now) {
		base *= int64(u.MultiplierLevel)
	}
	return base
}

// Level returns the current level of kind
func (u Upgrades) Level(kind UpgradeKind) int {
	switch kind {
	case UpgradeClick:
		return u.ClickLevel
	case UpgradeFactory:
		return u.FactoryLevel
	case UpgradeMultiplier:
		return u.MultiplierLevel
	}
	return 0
}

// Price returns the cost of buying the next level of kind.
//
// Click starts at 10 and grows by half (rounded down) per level, factory
// starts at 20 and doubles, multiplier starts at 80 and doubles.
func (u Upgrades) Price(kind UpgradeKind) int64 {
	switch kind {
	case UpgradeClick:
		price := int64(10)
		for i := 1; i < u.ClickLevel; i++ {
			price = price * 3 / 2
		}
		return price
	case UpgradeFactory:
		return 20 << u.FactoryLevel
	case UpgradeMultiplier:
		lvl := u.MultiplierLevel
		if lvl < 1 {
			lvl = 1
		}
		return 80 << (lvl - 1)
	}
	return 0
}

// MultiplierDuration is how long a boost bought at level lasts
func MultiplierDuration(level int) time.Duration {
	return 1500*time.Millisecond + time.Duration(level)*500*time.Millisecond
}

// Apply returns the upgrades after buying one level of kind at now
func (u Upgrades) Apply(kind UpgradeKind, now time.Time) Upgrades {
	switch kind {
	case UpgradeClick:
		u.ClickLevel++
	case UpgradeFactory:
		u.FactoryLevel++
	case UpgradeMultiplier:
		u.MultiplierLevel++
		u.MultiplierUntil = now.Add(MultiplierDuration(u.MultiplierLevel))
	}
	return u
}
