// =============================
// File: internal/dex/raydiumamm/instructions.go
// =============================
package raydiumamm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/spl"
)

const swapBaseInDiscriminator byte = 9

// swapInstruction собирает swap_base_in: 17 аккаунтов, однобайтовый
// дискриминатор. AMM v4 работает только с legacy SPL токенами, поэтому
// оба пользовательских ATA выводятся через Token Program.
func swapInstruction(payer, mint solana.PublicKey, p *Params, buy bool, amountIn, minimumOut uint64) (solana.Instruction, error) {
	wsolAccount, err := spl.AssociatedTokenAddress(payer, spl.WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wsol account: %w", err)
	}
	mintAccount, err := spl.AssociatedTokenAddress(payer, mint, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}

	sourceAccount, destinationAccount := wsolAccount, mintAccount
	if !buy {
		sourceAccount, destinationAccount = mintAccount, wsolAccount
	}

	data := make([]byte, 17)
	data[0] = swapBaseInDiscriminator
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minimumOut)

	accounts := []*solana.AccountMeta{
		solana.Meta(solana.TokenProgramID),
		solana.Meta(p.Amm).WRITE(),
		solana.Meta(Authority),
		solana.Meta(p.serumOrAmm(p.OpenOrders)).WRITE(),
		solana.Meta(p.CoinVault).WRITE(),
		solana.Meta(p.PcVault).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumProgram)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumMarket)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumBids)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumAsks)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumEventQueue)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumCoinVault)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumPcVault)).WRITE(),
		solana.Meta(p.serumOrAmm(p.SerumVaultSigner)).WRITE(),
		solana.Meta(sourceAccount).WRITE(),
		solana.Meta(destinationAccount).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}
