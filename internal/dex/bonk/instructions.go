// =============================
// File: internal/dex/bonk/instructions.go
// =============================
package bonk

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/spl"
)

var (
	buyExactInDiscriminator  = []byte{250, 234, 13, 123, 213, 156, 19, 236}
	sellExactInDiscriminator = []byte{149, 39, 222, 155, 211, 124, 152, 26}
)

// swapData: disc + amount_in + minimum_amount_out + share_fee_rate (всегда 0).
func swapData(discriminator []byte, amountIn, minimumOut uint64) []byte {
	data := make([]byte, 32)
	copy(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amountIn)
	binary.LittleEndian.PutUint64(data[16:24], minimumOut)
	return data
}

// swapInstruction собирает buy_exact_in / sell_exact_in с фиксированным
// порядком из 18 аккаунтов, заданным wire-контрактом программы.
func swapInstruction(payer, mint solana.PublicKey, p *Params, data []byte, useSeed bool) (solana.Instruction, error) {
	pool, baseVault, quoteVault, err := p.resolve(mint)
	if err != nil {
		return nil, err
	}

	userBase, err := userTokenAccount(payer, mint, p.mintProgram(), useSeed)
	if err != nil {
		return nil, err
	}
	// WSOL-аккаунт никогда не seed-derived: wrap/unwrap работают с ATA.
	userQuote, err := spl.AssociatedTokenAddress(payer, spl.WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user quote account: %w", err)
	}

	accounts := []*solana.AccountMeta{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(Authority),
		solana.Meta(GlobalConfig),
		solana.Meta(p.platformConfig()),
		solana.Meta(pool).WRITE(),
		solana.Meta(userBase).WRITE(),
		solana.Meta(userQuote).WRITE(),
		solana.Meta(baseVault).WRITE(),
		solana.Meta(quoteVault).WRITE(),
		solana.Meta(mint),
		solana.Meta(spl.WSOLMint),
		solana.Meta(p.mintProgram()),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(p.FeeDestination1).WRITE(),
		solana.Meta(p.FeeDestination2).WRITE(),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

func buildBuyInstructions(payer, mint solana.PublicKey, p *Params, amountIn, minTokensOut uint64, useSeed bool) ([]solana.Instruction, error) {
	instructions := make([]solana.Instruction, 0, 6)

	if p.AutoWrapSOL {
		wrap, _, err := spl.WrapSOLInstructions(payer, amountIn)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, wrap...)
	}

	create, err := createUserTokenAccount(payer, mint, p.mintProgram(), useSeed)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, create...)

	swap, err := swapInstruction(payer, mint, p, swapData(buyExactInDiscriminator, amountIn, minTokensOut), useSeed)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, swap)

	if p.AutoWrapSOL {
		closeWSOL, err := spl.UnwrapSOLInstruction(payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, closeWSOL)
	}
	return instructions, nil
}

func buildSellInstructions(payer, mint solana.PublicKey, p *Params, tokensIn, minSolOut uint64, useSeed bool) ([]solana.Instruction, error) {
	instructions := make([]solana.Instruction, 0, 3)

	if p.AutoWrapSOL {
		createWSOL, err := spl.CreateATAIdempotentInstruction(payer, payer, spl.WSOLMint, solana.TokenProgramID)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, createWSOL)
	}

	swap, err := swapInstruction(payer, mint, p, swapData(sellExactInDiscriminator, tokensIn, minSolOut), useSeed)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, swap)

	if p.AutoWrapSOL {
		closeWSOL, err := spl.UnwrapSOLInstruction(payer)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, closeWSOL)
	}
	return instructions, nil
}

func userTokenAccount(payer, mint, tokenProgram solana.PublicKey, useSeed bool) (solana.PublicKey, error) {
	if useSeed {
		return spl.TokenAccountAddressWithSeed(payer, mint), nil
	}
	ata, err := spl.AssociatedTokenAddress(payer, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account: %w", err)
	}
	return ata, nil
}

func createUserTokenAccount(payer, mint, tokenProgram solana.PublicKey, useSeed bool) ([]solana.Instruction, error) {
	if useSeed {
		return spl.CreateTokenAccountWithSeedInstructions(payer, mint), nil
	}
	create, err := spl.CreateATAIdempotentInstruction(payer, payer, mint, tokenProgram)
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{create}, nil
}
