// =============================
// File: internal/dex/pumpswap/instructions.go
// =============================
package pumpswap

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/spl"
)

var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

func swapData(discriminator []byte, arg1, arg2 uint64) []byte {
	data := make([]byte, 24)
	copy(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], arg1)
	binary.LittleEndian.PutUint64(data[16:24], arg2)
	return data
}

// buildSwapInstruction собирает swap с фиксированным порядком из 19
// аккаунтов; buy дополнительно несёт пару аккумуляторов объёма перед
// fee config. Порядок задан wire-контрактом программы.
func buildSwapInstruction(payer solana.PublicKey, p *Params, onChainBuy bool, data []byte) (solana.Instruction, error) {
	userBase, err := spl.AssociatedTokenAddress(payer, p.BaseMint, p.baseProgram())
	if err != nil {
		return nil, fmt.Errorf("failed to derive user base token account: %w", err)
	}
	userQuote, err := spl.AssociatedTokenAddress(payer, p.QuoteMint, p.quoteProgram())
	if err != nil {
		return nil, fmt.Errorf("failed to derive user quote token account: %w", err)
	}
	feeRecipientATA, err := spl.AssociatedTokenAddress(FeeRecipient, p.QuoteMint, p.quoteProgram())
	if err != nil {
		return nil, fmt.Errorf("failed to derive fee recipient token account: %w", err)
	}
	vaultAuthority, vaultATA, err := DeriveCoinCreatorVault(p.CoinCreator, p.QuoteMint, p.quoteProgram())
	if err != nil {
		return nil, err
	}

	accounts := make([]*solana.AccountMeta, 0, 23)
	accounts = append(accounts,
		solana.Meta(p.Pool),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(GlobalAccount),
		solana.Meta(p.BaseMint),
		solana.Meta(p.QuoteMint),
		solana.Meta(userBase).WRITE(),
		solana.Meta(userQuote).WRITE(),
		solana.Meta(p.PoolBaseTokenAccount).WRITE(),
		solana.Meta(p.PoolQuoteTokenAccount).WRITE(),
		solana.Meta(FeeRecipient),
		solana.Meta(feeRecipientATA).WRITE(),
		solana.Meta(p.baseProgram()),
		solana.Meta(p.quoteProgram()),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(spl.AssociatedTokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
		solana.Meta(vaultATA).WRITE(),
		solana.Meta(vaultAuthority),
	)
	if onChainBuy {
		userVolume, err := DeriveUserVolumeAccumulator(payer)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			solana.Meta(GlobalVolumeAccumulator).WRITE(),
			solana.Meta(userVolume).WRITE(),
		)
	}
	accounts = append(accounts,
		solana.Meta(FeeConfig),
		solana.Meta(FeeProgramID),
	)

	return solana.NewInstruction(ProgramID, accounts, data), nil
}
