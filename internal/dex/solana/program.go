package solana

import (
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// Side is the order-book side of a trade order.
type Side uint8

const (
	Bid Side = iota
	Ask
)

// OrderType mirrors the order program's execution modes.
type OrderType uint8

const (
	Limit OrderType = iota
	ImmediateOrCancel
	PostOnly
)

// Order program error codes.
const (
	ErrCodeInsufficientFunds = 6000
	ErrCodeUnauthorized      = 6001
)

// Discriminator returns the 8-byte Anchor selector of a global instruction.
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// TradeOrderArgs are the Borsh-encoded arguments of create_trade_order.
// Amount is in base-token smallest units, Price in micro quote units.
type TradeOrderArgs struct {
	Amount    uint64
	Price     uint64
	Side      Side
	OrderType OrderType
}

// TradeOrderAccounts lists the accounts create_trade_order touches.
type TradeOrderAccounts struct {
	Order            solana.PublicKey // fresh keypair, signs
	Owner            solana.PublicKey
	Market           solana.PublicKey
	UserTokenAccount solana.PublicKey
}

func encodeInstruction(name string, args any) ([]byte, error) {
	disc := Discriminator(name)
	if args == nil {
		return disc[:], nil
	}
	body, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return append(disc[:], body...), nil
}

// NewCreateTradeOrderInstruction builds the create_trade_order instruction.
func NewCreateTradeOrderInstruction(programID solana.PublicKey, acc TradeOrderAccounts, args TradeOrderArgs) (solana.Instruction, error) {
	data, err := encodeInstruction("create_trade_order", &args)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(acc.Order, true, true),
		solana.NewAccountMeta(acc.Owner, true, true),
		solana.NewAccountMeta(acc.Market, false, false),
		solana.NewAccountMeta(acc.UserTokenAccount, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// NewCancelOrderInstruction builds the cancel_order instruction for one order account.
func NewCancelOrderInstruction(programID, order, owner solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstruction("cancel_order", nil)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(order, true, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// NewInitializeAccountInstruction builds initialize_trading_account.
func NewInitializeAccountInstruction(programID, tradingAccount, owner solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeInstruction("initialize_trading_account", nil)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(tradingAccount, true, true),
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// NewTipInstruction transfers lamports from payer to the relay tip account.
func NewTipInstruction(payer, tipAccount solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, payer, tipAccount).Build()
}

// BuildTransaction assembles and signs a transaction paid by the first signer.
func BuildTransaction(instructions []solana.Instruction, blockhash solana.Hash, signers ...solana.PrivateKey) (*solana.Transaction, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("build transaction: no signers")
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(signers[0].PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return tx, nil
}
