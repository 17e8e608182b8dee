// =============================
// File: internal/swqos/endpoints.go
// =============================
package swqos

import "github.com/gagliardetto/solana-go"

// Region выбирает географический эндпоинт сервиса. Значения служат
// индексом в таблицах эндпоинтов.
type Region uint8

const (
	RegionNewYork Region = iota
	RegionFrankfurt
	RegionAmsterdam
	RegionSaltLakeCity
	RegionTokyo
	RegionLondon
	RegionLosAngeles
	RegionDefault

	regionCount
)

var regionNames = [regionCount]string{
	"new_york", "frankfurt", "amsterdam", "salt_lake_city",
	"tokyo", "london", "los_angeles", "default",
}

func (r Region) String() string {
	if r < regionCount {
		return regionNames[r]
	}
	return "default"
}

// ParseRegion разбирает имя региона из конфига. Пустая строка даёт Default.
func ParseRegion(s string) (Region, bool) {
	if s == "" {
		return RegionDefault, true
	}
	for i, name := range regionNames {
		if name == s {
			return Region(i), true
		}
	}
	return RegionDefault, false
}

// Таблицы регион→эндпоинт. У сервисов без точки в регионе указан
// ближайший; явный URL в конфиге всегда важнее таблицы.
var (
	jitoEndpoints = [regionCount]string{
		"https://ny.mainnet.block-engine.jito.wtf",
		"https://frankfurt.mainnet.block-engine.jito.wtf",
		"https://amsterdam.mainnet.block-engine.jito.wtf",
		"https://slc.mainnet.block-engine.jito.wtf",
		"https://tokyo.mainnet.block-engine.jito.wtf",
		"https://london.mainnet.block-engine.jito.wtf",
		"https://mainnet.block-engine.jito.wtf",
		"https://mainnet.block-engine.jito.wtf",
	}
	nextblockEndpoints = [regionCount]string{
		"https://ny.nextblock.io",
		"https://fra.nextblock.io",
		"https://fra.nextblock.io",
		"https://ny.nextblock.io",
		"https://ny.nextblock.io",
		"https://fra.nextblock.io",
		"https://ny.nextblock.io",
		"https://ny.nextblock.io",
	}
	zeroslotEndpoints = [regionCount]string{
		"https://ny.0slot.trade",
		"https://de.0slot.trade",
		"https://ams.0slot.trade",
		"https://la.0slot.trade",
		"https://jp.0slot.trade",
		"https://ams.0slot.trade",
		"https://la.0slot.trade",
		"https://ny.0slot.trade",
	}
	temporalEndpoints = [regionCount]string{
		"https://ewr1.nozomi.temporal.xyz",
		"https://fra2.nozomi.temporal.xyz",
		"https://ams1.nozomi.temporal.xyz",
		"https://pit1.nozomi.temporal.xyz",
		"https://tyo1.nozomi.temporal.xyz",
		"https://ams1.nozomi.temporal.xyz",
		"https://ewr1.nozomi.temporal.xyz",
		"https://ewr1.nozomi.temporal.xyz",
	}
	bloxrouteEndpoints = [regionCount]string{
		"https://ny.solana.dex.blxrbdn.com",
		"https://frankfurt.solana.dex.blxrbdn.com",
		"https://amsterdam.solana.dex.blxrbdn.com",
		"https://la.solana.dex.blxrbdn.com",
		"https://tokyo.solana.dex.blxrbdn.com",
		"https://uk.solana.dex.blxrbdn.com",
		"https://la.solana.dex.blxrbdn.com",
		"https://ny.solana.dex.blxrbdn.com",
	}
	node1Endpoints = [regionCount]string{
		"https://ny.node1.me",
		"https://fra.node1.me",
		"https://ams.node1.me",
		"https://ny.node1.me",
		"https://ny.node1.me",
		"https://ams.node1.me",
		"https://ny.node1.me",
		"https://ny.node1.me",
	}
	flashblockEndpoints = [regionCount]string{
		"https://ny.flashblock.trade",
		"https://fra.flashblock.trade",
		"https://ams.flashblock.trade",
		"https://slc.flashblock.trade",
		"https://ny.flashblock.trade",
		"https://fra.flashblock.trade",
		"https://ny.flashblock.trade",
		"https://ny.flashblock.trade",
	}
	blockrazorEndpoints = [regionCount]string{
		"https://newyork.solana.blockrazor.xyz:443",
		"https://frankfurt.solana.blockrazor.xyz:443",
		"https://amsterdam.solana.blockrazor.xyz:443",
		"https://newyork.solana.blockrazor.xyz:443",
		"https://tokyo.solana.blockrazor.xyz:443",
		"https://amsterdam.solana.blockrazor.xyz:443",
		"https://newyork.solana.blockrazor.xyz:443",
		"https://newyork.solana.blockrazor.xyz:443",
	}
	astralaneEndpoints = [regionCount]string{
		"https://ny.gateway.astralane.io/iris",
		"https://fr.gateway.astralane.io/iris",
		"https://fr.gateway.astralane.io/iris",
		"https://ny.gateway.astralane.io/iris",
		"https://jp.gateway.astralane.io/iris",
		"https://fr.gateway.astralane.io/iris",
		"https://ny.gateway.astralane.io/iris",
		"https://ny.gateway.astralane.io/iris",
	}
)

var serviceEndpoints = map[Service]*[regionCount]string{
	ServiceJito:       &jitoEndpoints,
	ServiceNextBlock:  &nextblockEndpoints,
	ServiceZeroSlot:   &zeroslotEndpoints,
	ServiceTemporal:   &temporalEndpoints,
	ServiceBloxroute:  &bloxrouteEndpoints,
	ServiceNode1:      &node1Endpoints,
	ServiceFlashBlock: &flashblockEndpoints,
	ServiceBlockRazor: &blockrazorEndpoints,
	ServiceAstralane:  &astralaneEndpoints,
}

func mustKeys(keys ...string) []solana.PublicKey {
	out := make([]solana.PublicKey, len(keys))
	for i, k := range keys {
		out[i] = solana.MustPublicKeyFromBase58(k)
	}
	return out
}

// Tip-аккаунты сервисов. Без перевода чаевых на один из них транзакция
// не принимается; аккаунт выбирается случайно на каждую сделку.
var tipAccounts = map[Service][]solana.PublicKey{
	ServiceJito: mustKeys(
		"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
		"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
		"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
		"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
		"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
		"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
		"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
		"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
	),
	ServiceNextBlock: mustKeys(
		"NextbLoCkVtMGcV47JzewQdvBpLqT9TxQFozQkN98pE",
		"NexTbLoCkWykbLuB1NkjXgFWkX9oAtcoagQegygXXA2",
		"NeXTBLoCKs9F1y5PJS9CKrFNNLU1keHW71rfh7KgA1X",
		"NexTBLockJYZ7QD7p2byrUa6df8ndV2WSd8GkbWqfbb",
		"neXtBLock1LeC67jYd1QdAa32kbVeubsfPNTJC1V5At",
		"nEXTBLockYgngeRmRrjDV31mGSekVPqZoMGhQEZtPVG",
		"NEXTbLoCkB51HpLBLojQfpyVAMorm3zzKg7w9NFdqid",
		"nextBLoCkPMgmG8ZgJtABeScP35qLa2AMCNKntAP7Xc",
	),
	ServiceZeroSlot: mustKeys(
		"Eb2KpSC8uMt9GmzyAEm5Eb1AAAgTjRaXWFjKyFXHZxF3",
		"FCjUJZ1qozm1e8romw216qyfQMaaWKxWsuySnumVCCNe",
		"ENxTEjSQ1YabmUpXAdCgevnHQ9MHdLv8tzFiuiYJqa13",
		"6rYLG55Q9RpsPGvqdPNJs4z5WTxJVatMB8zV3WJhs5EK",
		"Cix2bHfqPcKcM233mzxbLk14kSggUUiz2A87fJtGivXr",
	),
	ServiceTemporal: mustKeys(
		"TEMPaMeCRFAS9EKF53Jd6KpHxgL47uWLcpFArU1Fanq",
		"noz3jAjPiHuBPqiSPkkugaJDkJscPuRhYnSpbi8UvC4",
		"noz3str9KXfpKknefHji8L1mPgimezaiUyCHYMDv1GE",
		"noz6uoYCDijhu1V7cutCpwxNiSovEwLdRHPwmgCGDNo",
		"noz9EPNcT7WH6Sou3sr3GGjHQYVkN3DNirpbvDkv9YJ",
		"nozc5yT95LZb4GvYWyW5SvcpWqE3LUrNmJQJ8Gr9is3",
	),
	ServiceBloxroute: mustKeys(
		"HWEoBxYs7ssKuudEjzjmpfJVX7Dvi7wescFsVx2L5yoY",
		"95cfoy472fcQHaw4tPGBTKpn6ZQnfEPfBgDQx6gcRmRg",
		"3UQUKjhMKaY2S6bjcQD6yHB7utcZt5bfarRCmctpRtUd",
		"FogxVNs6Mm2w9rnGL1vkARSwJxvLE8mujTv3LK8RnUhF",
	),
	ServiceNode1: mustKeys(
		"node1PqAa3BWWzUnTHVbw8NJHC874zn9ngAkXjgWEej",
		"node1UzzTxAAeBTpfZkQPJXBAqixsbdth11ba1NXLBG",
	),
	ServiceFlashBlock: mustKeys(
		"FLaShB3iXXTWE1vu9wQsChUKq3HFtpMAhb8kAh1pf1wi",
		"FLashB3Q959SNjYPyBshBuDbrQcKicxoNtp6chYNtSg",
	),
	ServiceBlockRazor: mustKeys(
		"FjmZZrFvhnqqb9ThCuMVnENaM3JGVuGWNyCAxRJcFpg9",
		"Gywj98ophM7GmkDdaWs4isqZnDdFCW7B46TXmKfvyqSm",
	),
	ServiceAstralane: mustKeys(
		"astraRVUuTHjpwEVvNBeQEgwYx9w9CFyfxjYoobCZhL",
		"astra4uejePWneqNaJKuFFA8oonqCE1sqF6b45kDMZm",
		"astrazznxsGUhWShqgNtAdfrzP2G83DzcWVJDxwV9bF",
	),
}
