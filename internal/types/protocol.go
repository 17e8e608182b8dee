// ==================================
// File: internal/types/protocol.go
// ==================================
package types

import "fmt"

// Protocol идентифицирует торговый протокол. Закрытое множество:
// значение выбирает билдер, калькулятор и схему событий и не меняется
// после построения запроса.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolPumpFun
	ProtocolPumpSwap
	ProtocolBonk
	ProtocolRaydiumCpmm
	ProtocolRaydiumAmmV4
)

var protocolNames = map[Protocol]string{
	ProtocolPumpFun:      "pumpfun",
	ProtocolPumpSwap:     "pumpswap",
	ProtocolBonk:         "bonk",
	ProtocolRaydiumCpmm:  "raydium_cpmm",
	ProtocolRaydiumAmmV4: "raydium_amm_v4",
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("protocol(%d)", uint8(p))
}

// Valid сообщает, принадлежит ли значение закрытому множеству протоколов.
func (p Protocol) Valid() bool {
	_, ok := protocolNames[p]
	return ok
}

// ParseProtocol разбирает строковое имя протокола (как в конфиге или CLI).
func ParseProtocol(s string) (Protocol, error) {
	for p, name := range protocolNames {
		if name == s {
			return p, nil
		}
	}
	return ProtocolUnknown, fmt.Errorf("unknown protocol: %q", s)
}

// Protocols возвращает все поддерживаемые протоколы в стабильном порядке.
func Protocols() []Protocol {
	return []Protocol{
		ProtocolPumpFun,
		ProtocolPumpSwap,
		ProtocolBonk,
		ProtocolRaydiumCpmm,
		ProtocolRaydiumAmmV4,
	}
}
