package exchange

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/shopspring/decimal"
)

const (
	pythMagic          = 0xa1b2c3d4
	pythPriceHeaderLen = 240
)

// PythStatus is the aggregate price status published by the oracle.
type PythStatus uint32

const (
	PythUnknown PythStatus = iota
	PythTrading
	PythHalted
	PythAuction
)

func (s PythStatus) String() string {
	switch s {
	case PythTrading:
		return "trading"
	case PythHalted:
		return "halted"
	case PythAuction:
		return "auction"
	default:
		return "unknown"
	}
}

var (
	ErrShortAccount     = errors.New("pyth: account data too short")
	ErrBadMagic         = errors.New("pyth: not a price account")
	ErrNotTrading       = errors.New("pyth: aggregate price not trading")
	ErrNonPositivePrice = errors.New("pyth: non-positive price")
)

// pythPriceAccount is the fixed-size head of a Pyth v2 price account, up to and including the aggregate.
type pythPriceAccount struct {
	Magic         uint32
	Version       uint32
	AccountType   uint32
	Size          uint32
	PriceType     uint32
	Exponent      int32
	NumComponents uint32
	NumQuoters    uint32
	LastSlot      uint64
	ValidSlot     uint64
	EMAPrice      [3]int64
	EMAConf       [3]int64
	Timestamp     int64
	MinPublishers uint8
	Reserved      [7]byte
	Product       [32]byte
	Next          [32]byte
	PrevSlot      uint64
	PrevPrice     int64
	PrevConf      uint64
	PrevTimestamp int64
	AggPrice      int64
	AggConf       uint64
	AggStatus     uint32
	AggCorpAction uint32
	AggPubSlot    uint64
}

// PythPrice is a decoded aggregate price.
type PythPrice struct {
	Price       decimal.Decimal
	Conf        decimal.Decimal
	Exponent    int32
	Status      PythStatus
	PublishSlot uint64
}

// DecodePythPrice reads the aggregate price of a Pyth price account.
// The price is mantissa × 10^exponent computed exactly. Accounts that are not
// trading or that carry a non-positive price are rejected.
func DecodePythPrice(data []byte) (PythPrice, error) {
	if len(data) < pythPriceHeaderLen {
		return PythPrice{}, fmt.Errorf("%w: %d bytes", ErrShortAccount, len(data))
	}
	var raw pythPriceAccount
	if err := bin.NewBinDecoder(data[:pythPriceHeaderLen]).Decode(&raw); err != nil {
		return PythPrice{}, fmt.Errorf("pyth: decode: %w", err)
	}
	if raw.Magic != pythMagic {
		return PythPrice{}, fmt.Errorf("%w: magic 0x%08x", ErrBadMagic, raw.Magic)
	}
	out := PythPrice{
		Price:       decimal.New(raw.AggPrice, raw.Exponent),
		Conf:        decimal.New(int64(raw.AggConf), raw.Exponent),
		Exponent:    raw.Exponent,
		Status:      PythStatus(raw.AggStatus),
		PublishSlot: raw.AggPubSlot,
	}
	if out.Status != PythTrading {
		return out, fmt.Errorf("%w: %s", ErrNotTrading, out.Status)
	}
	if raw.AggPrice <= 0 {
		return out, fmt.Errorf("%w: %d", ErrNonPositivePrice, raw.AggPrice)
	}
	return out, nil
}
