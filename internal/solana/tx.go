package solana

import (
	"encoding/binary"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
)

// ComputeBudgetProgramID is the compute budget native program.
const ComputeBudgetProgramID = "ComputeBudget111111111111111111111111111111"

// SystemProgramID is the system program.
const SystemProgramID = "11111111111111111111111111111111"

// Native instruction tags.
const (
	computeBudgetSetUnitLimit = 2
	computeBudgetSetUnitPrice = 3

	systemTransfer = 2

	tokenCloseAccount = 9
	tokenSyncNative   = 17
)

// AccountMeta is one account reference of an instruction to be submitted.
type AccountMeta struct {
	Address  string
	Writable bool
	Signer   bool
}

// TxInstruction is an instruction ready to be compiled into a transaction.
type TxInstruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// SetComputeUnitPrice returns a compute budget instruction setting the priority
// fee in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) TxInstruction {
	data := make([]byte, 1, 9)
	data[0] = computeBudgetSetUnitPrice
	data = binary.LittleEndian.AppendUint64(data, microLamports)
	return TxInstruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// SetComputeUnitLimit returns a compute budget instruction capping compute units.
func SetComputeUnitLimit(units uint32) TxInstruction {
	data := make([]byte, 1, 5)
	data[0] = computeBudgetSetUnitLimit
	data = binary.LittleEndian.AppendUint32(data, units)
	return TxInstruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// CreateAssociatedTokenAccountIdempotent returns an instruction that creates
// owner's token account for mint unless it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, ata, owner, mint, tokenProgram string) TxInstruction {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}
	return TxInstruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			{Address: payer, Writable: true, Signer: true},
			{Address: ata, Writable: true},
			{Address: owner},
			{Address: mint},
			{Address: SystemProgramID},
			{Address: tokenProgram},
		},
		Data: []byte{1},
	}
}

// TransferSOL returns a system transfer of lamports from a signer to another account.
func TransferSOL(from, to string, lamports uint64) TxInstruction {
	data := make([]byte, 0, 12)
	data = binary.LittleEndian.AppendUint32(data, systemTransfer)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return TxInstruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Address: from, Writable: true, Signer: true},
			{Address: to, Writable: true},
		},
		Data: data,
	}
}

// SyncNative updates a wrapped SOL account's token amount to its lamport balance.
func SyncNative(account, tokenProgram string) TxInstruction {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}
	return TxInstruction{
		ProgramID: tokenProgram,
		Accounts:  []AccountMeta{{Address: account, Writable: true}},
		Data:      []byte{tokenSyncNative},
	}
}

// CloseAccount closes a token account owned by owner, sending its lamports to destination.
func CloseAccount(account, destination, owner, tokenProgram string) TxInstruction {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}
	return TxInstruction{
		ProgramID: tokenProgram,
		Accounts: []AccountMeta{
			{Address: account, Writable: true},
			{Address: destination, Writable: true},
			{Address: owner, Signer: true},
		},
		Data: []byte{tokenCloseAccount},
	}
}

// SignedTransaction is a serialized transaction and its first signature.
type SignedTransaction struct {
	Raw       []byte
	Signature string
}

// BuildSignedTransaction compiles instructions into a legacy transaction paid and
// signed by signer, bound to blockhash.
func BuildSignedTransaction(ixs []TxInstruction, blockhash string, signer *Keypair) (*SignedTransaction, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: nil signer", ErrInvalidKeypair)
	}
	if len(ixs) == 0 {
		return nil, fmt.Errorf("no instructions")
	}

	hash, err := sol.HashFromBase58(blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash: %w", err)
	}

	compiled := make([]sol.Instruction, 0, len(ixs))
	for i, ix := range ixs {
		program, err := sol.PublicKeyFromBase58(ix.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("instruction %d program id: %w", i, err)
		}
		metas := make(sol.AccountMetaSlice, 0, len(ix.Accounts))
		for j, a := range ix.Accounts {
			key, err := sol.PublicKeyFromBase58(a.Address)
			if err != nil {
				return nil, fmt.Errorf("instruction %d account %d: %w", i, j, err)
			}
			metas = append(metas, sol.NewAccountMeta(key, a.Writable, a.Signer))
		}
		compiled = append(compiled, sol.NewInstruction(program, metas, ix.Data))
	}

	payer := signer.priv.PublicKey()
	tx, err := sol.NewTransaction(compiled, hash, sol.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}

	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(payer) {
			return &signer.priv
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &SignedTransaction{
		Raw:       raw,
		Signature: tx.Signatures[0].String(),
	}, nil
}
