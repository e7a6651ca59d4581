package token

import (
	"github.com/fxamacker/cbor/v2"
)

// Claims is the signed payload of a session token
type Claims struct {
	Subject   string `cbor:"1,keyasint"`
	Username  string `cbor:"2,keyasint"`
	Role      string `cbor:"3,keyasint"`
	ID        string `cbor:"4,keyasint"` // unique per token, used for revocation
	IssuedAt  int64  `cbor:"5,keyasint"` // unix seconds
	ExpiresAt int64  `cbor:"6,keyasint"` // unix seconds
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("token: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("token: CBOR decoder initialization failed: " + err.Error())
	}
}
