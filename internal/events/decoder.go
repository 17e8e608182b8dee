// =============================
// File: internal/events/decoder.go
// =============================
package events

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/dex/bonk"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpfun"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpswap"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumamm"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumcpmm"
	"github.com/rovshanmuradov/soltrade/internal/types"
)

// eventCPITag открывает инструкцию anchor self-CPI (emit_cpi!): за ним
// идут обычные дискриминатор и тело события.
var eventCPITag = []byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}

// eventDiscriminator считает anchor-дискриминатор события по его имени.
func eventDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("event:" + name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

type decodeFunc func(raw []byte) (any, error)

type registryEntry struct {
	protocol types.Protocol
	kind     Kind
	decode   decodeFunc
}

// borshInto декодирует борш-тело в свежий T. Хвостовые байты за последним
// полем допустимы: программы дописывают поля, не меняя префикса.
func borshInto[T any](raw []byte) (any, error) {
	value := new(T)
	if err := bin.NewBorshDecoder(raw).Decode(value); err != nil {
		return nil, err
	}
	return value, nil
}

// anchorRegistry: программа → дискриминатор события → декодер. Ключ двойной,
// потому что у одноимённых событий разных программ дискриминатор общий
// (у pump.fun и LaunchLab это TradeEvent).
var anchorRegistry = buildAnchorRegistry()

func buildAnchorRegistry() map[solana.PublicKey]map[[8]byte]registryEntry {
	registry := make(map[solana.PublicKey]map[[8]byte]registryEntry)
	add := func(program solana.PublicKey, event string, protocol types.Protocol, kind Kind, decode decodeFunc) {
		if registry[program] == nil {
			registry[program] = make(map[[8]byte]registryEntry)
		}
		registry[program][eventDiscriminator(event)] = registryEntry{protocol: protocol, kind: kind, decode: decode}
	}

	add(pumpfun.ProgramID, "TradeEvent", types.ProtocolPumpFun, KindTrade, borshInto[PumpFunTrade])
	add(pumpfun.ProgramID, "CreateEvent", types.ProtocolPumpFun, KindCreate, borshInto[PumpFunCreate])
	add(pumpfun.ProgramID, "CompleteEvent", types.ProtocolPumpFun, KindComplete, borshInto[PumpFunComplete])

	add(pumpswap.ProgramID, "BuyEvent", types.ProtocolPumpSwap, KindBuy, borshInto[PumpSwapBuy])
	add(pumpswap.ProgramID, "SellEvent", types.ProtocolPumpSwap, KindSell, borshInto[PumpSwapSell])
	add(pumpswap.ProgramID, "CreatePoolEvent", types.ProtocolPumpSwap, KindCreatePool, borshInto[PumpSwapCreatePool])

	add(bonk.ProgramID, "TradeEvent", types.ProtocolBonk, KindTrade, borshInto[BonkTrade])
	add(bonk.ProgramID, "PoolCreateEvent", types.ProtocolBonk, KindPoolCreate, borshInto[BonkPoolCreate])

	add(raydiumcpmm.ProgramID, "SwapEvent", types.ProtocolRaydiumCpmm, KindSwap, borshInto[RaydiumCpmmSwap])

	return registry
}

// Decode разбирает anchor-событие из "Program data:" лога или self-CPI
// инструкции. На неузнанную программу или дискриминатор вернёт (nil, nil):
// новые виды событий не должны ронять поток. Узнанное событие с битым
// телом даёт *DecodeError.
func Decode(raw []byte, prov Provenance) (*UnifiedEvent, error) {
	payload := raw
	if len(payload) >= len(eventCPITag) && bytes.Equal(payload[:len(eventCPITag)], eventCPITag) {
		payload = payload[len(eventCPITag):]
	}
	if len(payload) < 8 {
		return nil, nil
	}

	programEvents, ok := anchorRegistry[prov.Program]
	if !ok {
		return nil, nil
	}
	var disc [8]byte
	copy(disc[:], payload[:8])
	entry, ok := programEvents[disc]
	if !ok {
		return nil, nil
	}

	value, err := entry.decode(payload[8:])
	if err != nil {
		return nil, &DecodeError{Protocol: entry.protocol, Kind: entry.kind, Err: err}
	}
	return &UnifiedEvent{
		Protocol:   entry.protocol,
		Kind:       entry.kind,
		Provenance: prov,
		Payload:    value,
	}, nil
}

// rayLogSwapBaseIn помечает запись swap_base_in в ray_log.
const rayLogSwapBaseIn = 3

// DecodeRayLog разбирает запись "ray_log:" программы Raydium AMM v4.
// Остальные типы записей (init, deposit, withdraw, swap_base_out)
// пропускаются как неузнанные.
func DecodeRayLog(raw []byte, prov Provenance) (*UnifiedEvent, error) {
	if len(raw) == 0 || raw[0] != rayLogSwapBaseIn {
		return nil, nil
	}
	var ev RaydiumAmmV4SwapBaseIn
	if err := bin.NewBinDecoder(raw[1:]).Decode(&ev); err != nil {
		return nil, &DecodeError{Protocol: types.ProtocolRaydiumAmmV4, Kind: KindSwapBaseIn, Err: err}
	}
	return &UnifiedEvent{
		Protocol:   types.ProtocolRaydiumAmmV4,
		Kind:       KindSwapBaseIn,
		Provenance: prov,
		Payload:    &ev,
	}, nil
}

// AmmV4ProgramID называет программу, чьи ray_log записи понимает DecodeRayLog.
var AmmV4ProgramID = raydiumamm.ProgramID
