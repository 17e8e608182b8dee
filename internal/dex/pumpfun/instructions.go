// =============================
// File: internal/dex/pumpfun/instructions.go
// =============================
package pumpfun

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/spl"
)

// Дискриминаторы инструкций программы.
var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// buildBuyInstructions: создание токен-аккаунта + buy.
// Порядок аккаунтов задан wire-контрактом программы, менять нельзя.
func buildBuyInstructions(payer, mint solana.PublicKey, p *Params, tokenAmount, maxSolCost uint64, useSeed bool) ([]solana.Instruction, error) {
	userATA, createInstructions, err := userTokenAccount(payer, mint, useSeed)
	if err != nil {
		return nil, err
	}

	creatorVault, err := DeriveCreatorVault(p.Creator)
	if err != nil {
		return nil, err
	}
	userVolume, err := DeriveUserVolumeAccumulator(payer)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 24)
	copy(data[0:8], buyDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], tokenAmount)
	binary.LittleEndian.PutUint64(data[16:24], maxSolCost)

	accounts := []*solana.AccountMeta{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(mint),
		solana.Meta(p.BondingCurve).WRITE(),
		solana.Meta(p.AssociatedBondingCurve).WRITE(),
		solana.Meta(userATA).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(creatorVault).WRITE(),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
		solana.Meta(GlobalVolumeAccumulator).WRITE(),
		solana.Meta(userVolume).WRITE(),
		solana.Meta(FeeConfig),
		solana.Meta(FeeProgramID),
	}

	instructions := append(createInstructions, solana.NewInstruction(ProgramID, accounts, data))
	return instructions, nil
}

// buildSellInstructions: sell, опционально + закрытие токен-аккаунта.
func buildSellInstructions(payer, mint solana.PublicKey, p *Params, tokenAmount, minSolOut uint64, useSeed bool) ([]solana.Instruction, error) {
	var userATA solana.PublicKey
	var err error
	if useSeed {
		userATA = spl.TokenAccountAddressWithSeed(payer, mint)
	} else {
		userATA, err = spl.AssociatedTokenAddress(payer, mint, solana.TokenProgramID)
		if err != nil {
			return nil, fmt.Errorf("failed to derive token account: %w", err)
		}
	}

	creatorVault, err := DeriveCreatorVault(p.Creator)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 24)
	copy(data[0:8], sellDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], tokenAmount)
	binary.LittleEndian.PutUint64(data[16:24], minSolOut)

	accounts := []*solana.AccountMeta{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(mint),
		solana.Meta(p.BondingCurve).WRITE(),
		solana.Meta(p.AssociatedBondingCurve).WRITE(),
		solana.Meta(userATA).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(creatorVault).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
		solana.Meta(FeeConfig),
		solana.Meta(FeeProgramID),
	}

	instructions := []solana.Instruction{solana.NewInstruction(ProgramID, accounts, data)}
	if p.CloseTokenAccount {
		instructions = append(instructions, spl.CloseAccountInstruction(userATA, payer, payer))
	}
	return instructions, nil
}

func userTokenAccount(payer, mint solana.PublicKey, useSeed bool) (solana.PublicKey, []solana.Instruction, error) {
	if useSeed {
		return spl.TokenAccountAddressWithSeed(payer, mint),
			spl.CreateTokenAccountWithSeedInstructions(payer, mint), nil
	}
	ata, err := spl.AssociatedTokenAddress(payer, mint, solana.TokenProgramID)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("failed to derive token account: %w", err)
	}
	create, err := spl.CreateATAIdempotentInstruction(payer, payer, mint, solana.TokenProgramID)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return ata, []solana.Instruction{create}, nil
}
