// =============================
// File: internal/stream/logs.go
// =============================
package stream

import (
	"encoding/base64"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/soltrade/internal/events"
)

// Префиксы строк лога, несущие полезную нагрузку.
const (
	prefixRayLog = "Program log: ray_log: "
	prefixLog    = "Program log: "
	prefixData   = "Program data: "
)

type payloadKind uint8

const (
	payloadAnchor payloadKind = iota
	payloadRayLog
)

// logPayload связывает извлечённое из логов транзакции тело события с
// программой, в контексте которой оно было испущено.
type logPayload struct {
	program solana.PublicKey
	kind    payloadKind
	raw     []byte
}

// extractPayloads сканирует строки лога транзакции, отслеживая стек вызовов
// по строкам "Program <pubkey> invoke/success/failed", и возвращает тела
// событий в порядке появления. Anchor-события приходят как "Program data:",
// записи ray_log принимаются только из-под AMM V4. Строки, которые не
// удаётся разобрать, и события без контекста вызова молча пропускаются.
func extractPayloads(logs []string) []logPayload {
	var (
		payloads []logPayload
		stack    []solana.PublicKey
	)
	top := func() (solana.PublicKey, bool) {
		if len(stack) == 0 {
			return solana.PublicKey{}, false
		}
		return stack[len(stack)-1], true
	}
	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, prefixRayLog):
			program, ok := top()
			if !ok || !program.Equals(events.AmmV4ProgramID) {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(line[len(prefixRayLog):])
			if err != nil {
				continue
			}
			payloads = append(payloads, logPayload{program: program, kind: payloadRayLog, raw: raw})
		case strings.HasPrefix(line, prefixLog):
			// Обычный текстовый лог программы.
		case strings.HasPrefix(line, prefixData):
			program, ok := top()
			if !ok {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(line[len(prefixData):])
			if err != nil {
				continue
			}
			payloads = append(payloads, logPayload{program: program, kind: payloadAnchor, raw: raw})
		default:
			// "Program <pubkey> invoke [N]" / "... success" / "... failed: <err>".
			fields := strings.Fields(line)
			if len(fields) < 3 || fields[0] != "Program" {
				continue
			}
			switch fields[2] {
			case "invoke":
				program, err := solana.PublicKeyFromBase58(fields[1])
				if err != nil {
					continue
				}
				stack = append(stack, program)
			case "success", "failed:":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return payloads
}

// sigDedupe держит кольцо последних подписей. Транзакция, упоминающая
// несколько отслеживаемых программ, приходит по каждой подписке отдельно;
// повторы отбрасываются. Не потокобезопасно: используется только из цикла
// чтения.
type sigDedupe struct {
	seen map[solana.Signature]struct{}
	ring []solana.Signature
	next int
}

func newSigDedupe(capacity int) *sigDedupe {
	return &sigDedupe{
		seen: make(map[solana.Signature]struct{}, capacity),
		ring: make([]solana.Signature, capacity),
	}
}

// observe возвращает true, если подпись встречена впервые.
func (d *sigDedupe) observe(sig solana.Signature) bool {
	if _, ok := d.seen[sig]; ok {
		return false
	}
	stale := d.ring[d.next]
	if stale != (solana.Signature{}) {
		delete(d.seen, stale)
	}
	d.ring[d.next] = sig
	d.next = (d.next + 1) % len(d.ring)
	d.seen[sig] = struct{}{}
	return true
}
