package spl

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/gagliardetto/solana-go"
)

// Seed-деривация токен-аккаунтов: короткий путь без ATA-программы.
// Аккаунт создаётся через CreateAccountWithSeed, поэтому адрес отличается
// от стандартного ATA: продавать такой токен можно только через билдер
// с тем же флагом. Работает только для классической токен-программы.

// SeedForMint возвращает детерминированный 8-символьный seed для mint:
// FNV-1a по байтам ключа, младшие 32 бита в hex.
func SeedForMint(mint solana.PublicKey) string {
	h := fnv.New32a()
	h.Write(mint.Bytes())
	return fmt.Sprintf("%08x", h.Sum32())
}

// TokenAccountAddressWithSeed выводит адрес seed-аккаунта под токен-программой:
// sha256(base || seed || owner), как в системной деривации create_with_seed.
func TokenAccountAddressWithSeed(payer, mint solana.PublicKey) solana.PublicKey {
	seed := SeedForMint(mint)
	sum := sha256.New()
	sum.Write(payer.Bytes())
	sum.Write([]byte(seed))
	sum.Write(solana.TokenProgramID.Bytes())
	return solana.PublicKeyFromBytes(sum.Sum(nil))
}

// CreateTokenAccountWithSeedInstructions создаёт и инициализирует
// seed-аккаунт: CreateAccountWithSeed + InitializeAccount3.
func CreateTokenAccountWithSeedInstructions(payer, mint solana.PublicKey) []solana.Instruction {
	seed := SeedForMint(mint)
	account := TokenAccountAddressWithSeed(payer, mint)
	return []solana.Instruction{
		createAccountWithSeedInstruction(payer, account, seed, TokenAccountRentExem, TokenAccountSize),
		initializeAccount3Instruction(account, mint, payer),
	}
}

// createAccountWithSeedInstruction собирает System Program index 3.
// Данные: u32 index, base, seed (длина u64 + байты), lamports, space, owner.
func createAccountWithSeedInstruction(payer, account solana.PublicKey, seed string, lamports, space uint64) solana.Instruction {
	data := make([]byte, 0, 4+32+8+len(seed)+8+8+32)
	var u32buf [4]byte
	binary.LittleEndian.PutUint32(u32buf[:], 3)
	data = append(data, u32buf[:]...)
	data = append(data, payer.Bytes()...)
	var u64buf [8]byte
	binary.LittleEndian.PutUint64(u64buf[:], uint64(len(seed)))
	data = append(data, u64buf[:]...)
	data = append(data, seed...)
	binary.LittleEndian.PutUint64(u64buf[:], lamports)
	data = append(data, u64buf[:]...)
	binary.LittleEndian.PutUint64(u64buf[:], space)
	data = append(data, u64buf[:]...)
	data = append(data, solana.TokenProgramID.Bytes()...)

	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(account).WRITE(),
		},
		data,
	)
}

// initializeAccount3Instruction собирает SPL Token index 18, владелец в
// данных.
func initializeAccount3Instruction(account, mint, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 33)
	data[0] = tokenIxInitializeAccount3
	copy(data[1:], owner.Bytes())
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			solana.Meta(account).WRITE(),
			solana.Meta(mint),
		},
		data,
	)
}
