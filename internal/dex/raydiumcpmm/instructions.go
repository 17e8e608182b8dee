// =============================
// File: internal/dex/raydiumcpmm/instructions.go
// =============================
package raydiumcpmm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/spl"
)

var swapBaseInputDiscriminator = []byte{143, 190, 90, 218, 196, 30, 51, 222}

// swapInstruction собирает swap_base_input: 13 аккаунтов в порядке
// вход→выход. Для покупки входной стороной служит WSOL, для продажи токен.
func swapInstruction(payer, mint solana.PublicKey, p *Params, buy bool, amountIn, minimumOut uint64) (solana.Instruction, error) {
	pool, wsolVault, mintVault, observation, err := p.resolve(mint)
	if err != nil {
		return nil, err
	}

	wsolAccount, err := spl.AssociatedTokenAddress(payer, spl.WSOLMint, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wsol account: %w", err)
	}
	mintAccount, err := spl.AssociatedTokenAddress(payer, mint, p.mintProgram())
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}

	inputAccount, outputAccount := wsolAccount, mintAccount
	inputVault, outputVault := wsolVault, mintVault
	inputProgram, outputProgram := solana.TokenProgramID, p.mintProgram()
	inputMint, outputMint := spl.WSOLMint, mint
	if !buy {
		inputAccount, outputAccount = mintAccount, wsolAccount
		inputVault, outputVault = mintVault, wsolVault
		inputProgram, outputProgram = p.mintProgram(), solana.TokenProgramID
		inputMint, outputMint = mint, spl.WSOLMint
	}

	data := make([]byte, 24)
	copy(data[0:8], swapBaseInputDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], amountIn)
	binary.LittleEndian.PutUint64(data[16:24], minimumOut)

	accounts := []*solana.AccountMeta{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(Authority),
		solana.Meta(p.ammConfig()).WRITE(),
		solana.Meta(pool).WRITE(),
		solana.Meta(inputAccount).WRITE(),
		solana.Meta(outputAccount).WRITE(),
		solana.Meta(inputVault).WRITE(),
		solana.Meta(outputVault).WRITE(),
		solana.Meta(inputProgram),
		solana.Meta(outputProgram),
		solana.Meta(inputMint),
		solana.Meta(outputMint),
		solana.Meta(observation).WRITE(),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}
