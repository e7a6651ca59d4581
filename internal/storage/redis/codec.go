package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mcoot/bananaclick/internal/model"
)

// Hash field names. Accounts live in a hash rather than a JSON blob so the
// score can be bumped in place with HINCRBY.
const (
	fieldID              = "id"
	fieldUsername        = "username"
	fieldEmail           = "email"
	fieldPasswordHash    = "password_hash"
	fieldRole            = "role"
	fieldScore           = "score"
	fieldBlocked         = "blocked"
	fieldActive          = "active"
	fieldClickLevel      = "click_level"
	fieldFactoryLevel    = "factory_level"
	fieldMultiplierLevel = "multiplier_level"
	fieldMultiplierUntil = "multiplier_until"
	fieldSeq             = "seq"
	fieldCreatedAt       = "created_at"
	fieldUpdatedAt       = "updated_at"
	fieldLastActiveAt    = "last_active_at"
)

// encodeAccount flattens an account into hash fields. Seq is left out; it is
// assigned by the create script and never rewritten.
func encodeAccount(a *model.Account) map[string]any {
	return map[string]any{
		fieldID:              string(a.ID),
		fieldUsername:        a.Username,
		fieldEmail:           a.Email,
		fieldPasswordHash:    a.PasswordHash,
		fieldRole:            string(a.Role),
		fieldScore:           a.Score,
		fieldBlocked:         encodeBool(a.Blocked),
		fieldActive:          encodeBool(a.Active),
		fieldClickLevel:      a.Upgrades.ClickLevel,
		fieldFactoryLevel:    a.Upgrades.FactoryLevel,
		fieldMultiplierLevel: a.Upgrades.MultiplierLevel,
		fieldMultiplierUntil: encodeTime(a.Upgrades.MultiplierUntil),
		fieldCreatedAt:       encodeTime(a.CreatedAt),
		fieldUpdatedAt:       encodeTime(a.UpdatedAt),
		fieldLastActiveAt:    encodeTime(a.LastActiveAt),
	}
}

// flatten turns encoded fields into HSET-style arguments
func flatten(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func decodeAccount(h map[string]string) (*model.Account, error) {
	if len(h) == 0 {
		return nil, model.ErrAccountNotFound
	}

	var d decoder
	a := &model.Account{
		ID:           model.AccountID(h[fieldID]),
		Username:     h[fieldUsername],
		Email:        h[fieldEmail],
		PasswordHash: h[fieldPasswordHash],
		Role:         model.Role(h[fieldRole]),
		Score:        d.int64(h, fieldScore),
		Blocked:      h[fieldBlocked] == "1",
		Active:       h[fieldActive] == "1",
		Upgrades: model.Upgrades{
			ClickLevel:      int(d.int64(h, fieldClickLevel)),
			FactoryLevel:    int(d.int64(h, fieldFactoryLevel)),
			MultiplierLevel: int(d.int64(h, fieldMultiplierLevel)),
			MultiplierUntil: d.time(h, fieldMultiplierUntil),
		},
		Seq:          uint64(d.int64(h, fieldSeq)),
		CreatedAt:    d.time(h, fieldCreatedAt),
		UpdatedAt:    d.time(h, fieldUpdatedAt),
		LastActiveAt: d.time(h, fieldLastActiveAt),
	}
	if d.err != nil {
		return nil, d.err
	}
	return a, nil
}

type decoder struct {
	err error
}

func (d *decoder) int64(h map[string]string, field string) int64 {
	raw, ok := h[field]
	if !ok || raw == "" || d.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d.err = fmt.Errorf("decoding %s: %w", field, err)
	}
	return n
}

func (d *decoder) time(h map[string]string, field string) time.Time {
	n := d.int64(h, field)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
