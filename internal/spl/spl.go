// =============================
// File: internal/spl/spl.go
// =============================
// Package spl содержит низкоуровневые хелперы SPL Token / System Program:
// деривацию токен-аккаунтов, обёртку WSOL и сырые инструкции, которых нет
// в используемой версии solana-go.
package spl

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	// WSOLMint задаёт mint обёрнутого SOL.
	WSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	// AssociatedTokenProgramID указывает программу ассоциированных
	// токен-аккаунтов.
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	// Token2022ProgramID указывает программу Token-2022.
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// Размер токен-аккаунта и его rent-exempt минимум (lamports). Минимум
// фиксирован параметрами сети; держим константой, чтобы не ходить в RPC
// на горячем пути.
const (
	TokenAccountSize     = 165
	TokenAccountRentExem = 2_039_280
)

// Инструкции SPL Token, собираемые вручную.
const (
	tokenIxCloseAccount       = 9
	tokenIxSyncNative         = 17
	tokenIxInitializeAccount3 = 18
)

// AssociatedTokenAddress выводит ATA для (owner, mint) под заданной
// токен-программой. Отличается от solana.FindAssociatedTokenAddress
// поддержкой Token-2022.
func AssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		AssociatedTokenProgramID,
	)
	return addr, err
}

// CreateATAIdempotentInstruction создаёт ATA, если его ещё нет
// (discriminator 1, CreateIdempotent). Повторный вызов безвреден.
func CreateATAIdempotentInstruction(payer, owner, mint, tokenProgram solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		AssociatedTokenProgramID,
		[]*solana.AccountMeta{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(tokenProgram),
		},
		[]byte{1},
	), nil
}

// AdvanceNonceInstruction продвигает durable nonce (System Program, index 4).
func AdvanceNonceInstruction(nonceAccount, authority solana.PublicKey) solana.Instruction {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 4)
	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			solana.Meta(nonceAccount).WRITE(),
			solana.Meta(solana.SysVarRecentBlockHashesPubkey),
			solana.Meta(authority).SIGNER(),
		},
		data,
	)
}

// SystemTransferInstruction собирает перевод lamports (System Program,
// index 2).
func SystemTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			solana.Meta(from).WRITE().SIGNER(),
			solana.Meta(to).WRITE(),
		},
		data,
	)
}

// SyncNativeInstruction синхронизирует баланс WSOL-аккаунта после перевода.
func SyncNativeInstruction(account solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{solana.Meta(account).WRITE()},
		[]byte{tokenIxSyncNative},
	)
}

// CloseAccountInstruction закрывает токен-аккаунт, возвращая lamports владельцу.
func CloseAccountInstruction(account, destination, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			solana.Meta(account).WRITE(),
			solana.Meta(destination).WRITE(),
			solana.Meta(owner).SIGNER(),
		},
		[]byte{tokenIxCloseAccount},
	)
}

// WrapSOLInstructions оборачивает lamports в WSOL на ATA плательщика:
// идемпотентное создание аккаунта, перевод, SyncNative. Инструкции
// вставляются в общий InstructionSet перед свопом, чтобы middleware их видел.
func WrapSOLInstructions(payer solana.PublicKey, lamports uint64) ([]solana.Instruction, solana.PublicKey, error) {
	ata, err := AssociatedTokenAddress(payer, WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	create, err := CreateATAIdempotentInstruction(payer, payer, WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	instructions := []solana.Instruction{create}
	if lamports > 0 {
		instructions = append(instructions,
			SystemTransferInstruction(payer, ata, lamports),
			SyncNativeInstruction(ata),
		)
	}
	return instructions, ata, nil
}

// UnwrapSOLInstruction закрывает WSOL ATA, распаковывая остаток в SOL.
func UnwrapSOLInstruction(payer solana.PublicKey) (solana.Instruction, error) {
	ata, err := AssociatedTokenAddress(payer, WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return CloseAccountInstruction(ata, payer, payer), nil
}
